// Package node defines the contract every operator-facing HTTP surface in
// the system satisfies. The medium's admin endpoint is the only
// implementation today; the interface keeps route wiring and identity
// reporting uniform if more surfaces appear.
package node

import "github.com/gin-gonic/gin"

// Node identifies one HTTP-exposed component and hands out its router.
type Node interface {
	// NodeID is the configured name of the component, e.g. "medium.local".
	NodeID() string
	// Kind labels the component family, e.g. "medium".
	Kind() string
	HTTPRouter() *gin.Engine
}
