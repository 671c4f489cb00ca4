package events

import (
	"testing"
	"time"

	"github.com/holiman/uint256"

	"voteledger/core/types"
)

func TestDelegateeChangedRendersNoneAsEmpty(t *testing.T) {
	delegator := types.AccountID{1}
	evt := DelegateeChanged{Delegator: delegator, From: types.NoAccount, To: delegator}.Event()
	if evt.Type != TypeDelegateeChanged {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	if evt.Attributes["from"] != "" {
		t.Fatalf("expected empty from, got %q", evt.Attributes["from"])
	}
	if evt.Attributes["to"] != delegator.String() || evt.Attributes["delegator"] != delegator.String() {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}
}

func TestDelegateVotesChangedAmounts(t *testing.T) {
	evt := DelegateVotesChanged{
		Delegate: types.AccountID{2},
		Previous: uint256.NewInt(1000),
		Current:  uint256.NewInt(900),
	}.Event()
	if evt.Attributes["previous"] != "1000" || evt.Attributes["current"] != "900" {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}
}

func TestBufferDrain(t *testing.T) {
	var buf Buffer
	buf.Emit(TokenPaused{Paused: true})
	buf.Emit(nil)
	buf.Emit(TokenPaused{})
	drained := buf.Drain()
	if len(drained) != 2 {
		t.Fatalf("expected 2 events, got %d", len(drained))
	}
	if len(buf.Events()) != 0 {
		t.Fatalf("buffer not reset")
	}
}

func TestBroadcasterDeliversAndUnsubscribes(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe(1)
	b.Publish(TokenPaused{Paused: true}.Event())
	b.Publish(TokenPaused{}.Event())

	select {
	case evt := <-ch:
		if evt.Attributes["paused"] != "true" {
			t.Fatalf("unexpected event %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
}
