package protocol

import "strings"

// Kind enumerates the recognized message types. Routing is by this closed
// set through a fixed table, never by reflected method lookup.
type Kind int

const (
	KindUnknown Kind = iota
	KindMount
	KindUnmount
	KindSyn
	KindGet
	KindSet
	KindDelete
)

// Wire names for the recognized message types. Matching is case-insensitive.
const (
	TypeMount   = "MOUNT"
	TypeUnmount = "UNMOUNT"
	TypeSyn     = "SYN"
	TypeGet     = "GET"
	TypeSet     = "SET"
	TypeDelete  = "DELETE"
)

var kindByType = map[string]Kind{
	TypeMount:   KindMount,
	TypeUnmount: KindUnmount,
	TypeSyn:     KindSyn,
	TypeGet:     KindGet,
	TypeSet:     KindSet,
	TypeDelete:  KindDelete,
}

var typeByKind = map[Kind]string{
	KindMount:   TypeMount,
	KindUnmount: TypeUnmount,
	KindSyn:     TypeSyn,
	KindGet:     TypeGet,
	KindSet:     TypeSet,
	KindDelete:  TypeDelete,
}

// ParseKind maps a wire type string onto the kind set. Unrecognized and
// empty inputs map to KindUnknown; callers drop those messages.
func ParseKind(raw string) Kind {
	kind, ok := kindByType[strings.ToUpper(strings.TrimSpace(raw))]
	if !ok {
		return KindUnknown
	}
	return kind
}

func (k Kind) String() string {
	if name, ok := typeByKind[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsAction reports whether the kind is a store operation expecting a data
// response.
func (k Kind) IsAction() bool {
	switch k {
	case KindGet, KindSet, KindDelete:
		return true
	default:
		return false
	}
}
