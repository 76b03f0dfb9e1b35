package scope

import (
	"testing"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
)

func dummy(n int64) *constant.Int { return constant.NewInt(types.I64, n) }

func TestPushGetPop(t *testing.T) {
	s := New()
	s.Push("x", dummy(1))
	e := s.Get("x")
	if e.UsedLater() != 0 {
		t.Fatalf("expected fresh binding to start at 0, got %d", e.UsedLater())
	}
	s.Pop("x")
	if s.Has("x") {
		t.Fatal("expected x to be unbound after pop")
	}
}

func TestShadowing(t *testing.T) {
	s := New()
	inner := dummy(2)
	s.Push("x", dummy(1))
	s.Push("x", inner)
	if s.Get("x").Value != inner {
		t.Fatal("expected the second push to shadow the first")
	}
	s.Pop("x")
	if !s.Has("x") {
		t.Fatal("expected outer x to still be bound after popping the inner one")
	}
	s.Pop("x")
	if s.Has("x") {
		t.Fatal("expected x fully unbound")
	}
}

func TestUsedLaterIncrementDecrement(t *testing.T) {
	s := New()
	s.Push("x", dummy(1))
	names := map[string]struct{}{"x": {}}
	s.IncrementUsedLater(names)
	s.IncrementUsedLater(names)
	if got := s.Get("x").UsedLater(); got != 2 {
		t.Fatalf("expected used_later=2, got %d", got)
	}
	s.DecrementUsedLater(names)
	if got := s.Get("x").UsedLater(); got != 1 {
		t.Fatalf("expected used_later=1, got %d", got)
	}
}

func TestUsedLaterUnderflowPanics(t *testing.T) {
	s := New()
	s.Push("x", dummy(1))
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on used_later underflow")
		}
	}()
	s.DecrementUsedLater(map[string]struct{}{"x": {}})
}

func TestGetUnboundPanics(t *testing.T) {
	s := New()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on scope miss")
		}
	}()
	s.Get("nope")
}
