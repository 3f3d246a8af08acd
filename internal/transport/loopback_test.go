package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/exbotanical/seance/internal/protocol"
	"github.com/exbotanical/seance/internal/testutil/testlog"
)

func recvMessage(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
		return Message{}
	}
}

func TestHubDeliveryStampsSender(t *testing.T) {
	testlog.Start(t)
	hub := NewHub()
	medium, err := hub.Attach("https://medium.example")
	if err != nil {
		t.Fatalf("attach medium: %v", err)
	}
	defer medium.Close()
	sitter, err := hub.Attach("https://sitter.example")
	if err != nil {
		t.Fatalf("attach sitter: %v", err)
	}
	defer sitter.Close()

	got := make(chan Message, 1)
	cancel := medium.Subscribe(func(msg Message) {
		got <- msg
	})
	defer cancel()

	if err := sitter.Send("https://medium.example", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	msg := recvMessage(t, got)
	if msg.Sender != protocol.Origin("https://sitter.example") {
		t.Fatalf("unexpected sender: %q", msg.Sender)
	}
	if msg.Payload != "hello" {
		t.Fatalf("unexpected payload: %q", msg.Payload)
	}
}

func TestHubDuplicateOrigin(t *testing.T) {
	testlog.Start(t)
	hub := NewHub()
	ep, err := hub.Attach("https://dup.example")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer ep.Close()
	if _, err := hub.Attach("https://dup.example"); !errors.Is(err, ErrOriginTaken) {
		t.Fatalf("expected ErrOriginTaken, got %v", err)
	}
}

func TestHubUnknownDestination(t *testing.T) {
	testlog.Start(t)
	hub := NewHub()
	ep, err := hub.Attach("https://solo.example")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer ep.Close()
	if err := ep.Send("https://nobody.example", "x"); !errors.Is(err, ErrUnknownDestination) {
		t.Fatalf("expected ErrUnknownDestination, got %v", err)
	}
}

func TestEndpointSendAfterClose(t *testing.T) {
	testlog.Start(t)
	hub := NewHub()
	a, err := hub.Attach("https://a.example")
	if err != nil {
		t.Fatalf("attach a: %v", err)
	}
	b, err := hub.Attach("https://b.example")
	if err != nil {
		t.Fatalf("attach b: %v", err)
	}
	defer b.Close()

	a.Close()
	if err := a.Send("https://b.example", "x"); !errors.Is(err, ErrEndpointClosed) {
		t.Fatalf("expected ErrEndpointClosed, got %v", err)
	}

	select {
	case <-a.Terminating():
	default:
		t.Fatalf("terminating should be closed")
	}
}

func TestSubscribeCancelDetachesHandler(t *testing.T) {
	testlog.Start(t)
	hub := NewHub()
	a, err := hub.Attach("https://recv.example")
	if err != nil {
		t.Fatalf("attach recv: %v", err)
	}
	defer a.Close()
	b, err := hub.Attach("https://send.example")
	if err != nil {
		t.Fatalf("attach send: %v", err)
	}
	defer b.Close()

	first := make(chan Message, 4)
	second := make(chan Message, 4)
	cancelFirst := a.Subscribe(func(msg Message) { first <- msg })
	cancelSecond := a.Subscribe(func(msg Message) { second <- msg })
	defer cancelSecond()

	if err := b.Send("https://recv.example", "one"); err != nil {
		t.Fatalf("send one: %v", err)
	}
	recvMessage(t, first)
	recvMessage(t, second)

	cancelFirst()
	if err := b.Send("https://recv.example", "two"); err != nil {
		t.Fatalf("send two: %v", err)
	}
	recvMessage(t, second)
	select {
	case msg := <-first:
		t.Fatalf("cancelled handler still invoked: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEndpointOrderingPreserved(t *testing.T) {
	testlog.Start(t)
	hub := NewHub()
	a, err := hub.Attach("https://order.example")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer a.Close()
	b, err := hub.Attach("https://producer.example")
	if err != nil {
		t.Fatalf("attach producer: %v", err)
	}
	defer b.Close()

	got := make(chan Message, 8)
	cancel := a.Subscribe(func(msg Message) { got <- msg })
	defer cancel()

	for _, payload := range []string{"m1", "m2", "m3"} {
		if err := b.Send("https://order.example", payload); err != nil {
			t.Fatalf("send %s: %v", payload, err)
		}
	}
	for _, want := range []string{"m1", "m2", "m3"} {
		msg := recvMessage(t, got)
		if msg.Payload != want {
			t.Fatalf("out of order: want %q got %q", want, msg.Payload)
		}
	}
}

func TestEndpointReadyImmediately(t *testing.T) {
	testlog.Start(t)
	hub := NewHub()
	ep, err := hub.Attach("https://ready.example")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer ep.Close()
	select {
	case <-ep.Ready():
	default:
		t.Fatalf("loopback endpoint should be ready on attach")
	}
}
