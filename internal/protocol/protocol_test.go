package protocol

import (
	"errors"
	"testing"

	"github.com/exbotanical/seance/internal/testutil/testlog"
)

func TestRequestRoundTrip(t *testing.T) {
	testlog.Start(t)
	req, err := NewSet("https://app.example", 12, []Pair{{Key: "k", Value: "v"}})
	if err != nil {
		t.Fatalf("build set: %v", err)
	}
	wire, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	got, err := DecodeRequest(wire)
	if err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if got.Sender != req.Sender || got.ID != req.ID || got.Type != req.Type {
		t.Fatalf("unexpected request: %+v", got)
	}
	pairs, err := DecodePairs(got.Payload)
	if err != nil {
		t.Fatalf("decode pairs: %v", err)
	}
	if len(pairs) != 1 || pairs[0].Key != "k" || pairs[0].Value != "v" {
		t.Fatalf("unexpected pairs: %+v", pairs)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	testlog.Start(t)
	resp, err := NewEntriesResponse(7, []map[string]any{{"alpha": "1"}, {"beta": nil}})
	if err != nil {
		t.Fatalf("build response: %v", err)
	}
	wire, err := EncodeResponse(resp)
	if err != nil {
		t.Fatalf("encode response: %v", err)
	}
	got, err := DecodeResponse(wire)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != 7 || got.Error != "" {
		t.Fatalf("unexpected response: %+v", got)
	}
	entries, err := DecodeEntries(got.Result)
	if err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 2 || entries[0]["alpha"] != "1" || entries[1]["beta"] != nil {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestMountCarriesSitterID(t *testing.T) {
	testlog.Start(t)
	req, err := NewMount("https://app.example", 1, "sitter-77f1")
	if err != nil {
		t.Fatalf("build mount: %v", err)
	}
	wire, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("encode mount: %v", err)
	}
	got, err := DecodeRequest(wire)
	if err != nil {
		t.Fatalf("decode mount: %v", err)
	}
	if got.Kind() != KindMount {
		t.Fatalf("unexpected kind: %v", got.Kind())
	}
	id, err := DecodeSitterID(got.Payload)
	if err != nil {
		t.Fatalf("decode sitter id: %v", err)
	}
	if id != "sitter-77f1" {
		t.Fatalf("unexpected sitter id: %q", id)
	}
}

func TestDecodeRequestMalformed(t *testing.T) {
	testlog.Start(t)
	if _, err := DecodeRequest("{not json"); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
	if _, err := DecodeRequest(`{"sender":"","id":3,"type":"SYN"}`); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := DecodeRequest(`{"sender":"https://a","id":0,"type":"SYN"}`); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected reserved id rejection, got %v", err)
	}
}

func TestDecodeResponseMalformed(t *testing.T) {
	testlog.Start(t)
	if _, err := DecodeResponse("]["); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
	if _, err := DecodeResponse(`{"id":9,"result":null}`); !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestParseKindTable(t *testing.T) {
	testlog.Start(t)
	if got := ParseKind("mount"); got != KindMount {
		t.Fatalf("lowercase mount got=%v", got)
	}
	if got := ParseKind(" Syn "); got != KindSyn {
		t.Fatalf("padded syn got=%v", got)
	}
	if got := ParseKind("DELETE"); got != KindDelete {
		t.Fatalf("delete got=%v", got)
	}
	if got := ParseKind("gossip"); got != KindUnknown {
		t.Fatalf("unrecognized type got=%v", got)
	}
	if got := ParseKind(""); got != KindUnknown {
		t.Fatalf("empty type got=%v", got)
	}
}

func TestKindIsAction(t *testing.T) {
	testlog.Start(t)
	for _, k := range []Kind{KindGet, KindSet, KindDelete} {
		if !k.IsAction() {
			t.Fatalf("%v should be an action", k)
		}
	}
	for _, k := range []Kind{KindMount, KindUnmount, KindSyn, KindUnknown} {
		if k.IsAction() {
			t.Fatalf("%v should not be an action", k)
		}
	}
}

func TestMarkers(t *testing.T) {
	testlog.Start(t)
	ack := NewAck(3)
	if !ack.IsAck() || ack.IsClose() || ack.IsTeardown() {
		t.Fatalf("unexpected ack markers: %+v", ack)
	}
	down := NewTeardown()
	if !down.IsClose() || !down.IsTeardown() || down.ID != TeardownID {
		t.Fatalf("unexpected teardown: %+v", down)
	}
	wire, err := EncodeResponse(down)
	if err != nil {
		t.Fatalf("encode teardown: %v", err)
	}
	got, err := DecodeResponse(wire)
	if err != nil {
		t.Fatalf("decode teardown: %v", err)
	}
	if !got.IsTeardown() {
		t.Fatalf("teardown lost through codec: %+v", got)
	}
}

func TestErrorResponseShape(t *testing.T) {
	testlog.Start(t)
	resp := NewErrorResponse(5, "store adapter unavailable")
	wire, err := EncodeResponse(resp)
	if err != nil {
		t.Fatalf("encode error response: %v", err)
	}
	got, err := DecodeResponse(wire)
	if err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if got.ID != 5 || got.Error != "store adapter unavailable" {
		t.Fatalf("unexpected error response: %+v", got)
	}
	if got.IsAck() || got.IsClose() {
		t.Fatalf("error response should carry no marker: %+v", got)
	}
}

func TestEncodeRequestRejectsInvalid(t *testing.T) {
	testlog.Start(t)
	if _, err := EncodeRequest(Request{Sender: "https://a", ID: TeardownID, Type: TypeSyn}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected reserved id rejection, got %v", err)
	}
	if _, err := NewMount("https://a", 1, ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected empty sitter id rejection, got %v", err)
	}
}
