package bootalloc

import (
	"errors"
	"testing"

	"github.com/vmkit/vmkit/pkg/types"
)

func TestAllocInBottomUp(t *testing.T) {
	a := New()
	got, err := a.AllocIn(0x10000, 0x10000, 0x1000, 8)
	if err != nil {
		t.Fatalf("AllocIn: %v", err)
	}
	if got != 0x10000 {
		t.Fatalf("expected lowest address, got %#x", got)
	}
	// Second allocation bumps past the first.
	got2, err := a.AllocIn(0x10000, 0x10000, 0x1000, 8)
	if err != nil {
		t.Fatalf("AllocIn: %v", err)
	}
	if got2 != 0x11000 {
		t.Fatalf("expected bump to %#x, got %#x", 0x11000, got2)
	}
}

func TestAllocInRoutesAroundReservation(t *testing.T) {
	a := New()
	if err := a.Reserve(0x10000, 0x2000); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	got, err := a.AllocIn(0x10000, 0x10000, 0x1000, 0x1000)
	if err != nil {
		t.Fatalf("AllocIn: %v", err)
	}
	if got != 0x12000 {
		t.Fatalf("expected placement past reservation, got %#x", got)
	}
}

func TestAllocInAlignment(t *testing.T) {
	a := New()
	got, err := a.AllocIn(0x10001, 0x10000, 0x100, 0x1000)
	if err != nil {
		t.Fatalf("AllocIn: %v", err)
	}
	if got%0x1000 != 0 {
		t.Fatalf("result %#x not aligned", got)
	}
}

func TestAllocInNoSpace(t *testing.T) {
	a := New()
	if err := a.Reserve(0x10000, 0x10000); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	_, err := a.AllocIn(0x10000, 0x10000, 0x1000, 8)
	if !errors.Is(err, ErrNoSpace) {
		t.Fatalf("expected ErrNoSpace, got %v", err)
	}
}

func TestReserveOverlap(t *testing.T) {
	a := New()
	if err := a.Reserve(0x1000, 0x1000); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := a.Reserve(0x1800, 0x1000); !errors.Is(err, ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}
	// Adjacent is fine.
	if err := a.Reserve(0x2000, 0x1000); err != nil {
		t.Fatalf("adjacent Reserve: %v", err)
	}
}

func TestReserved(t *testing.T) {
	a := New()
	if err := a.Reserve(0x5000, 0x1000); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	cases := []struct {
		addr types.PhysAddr
		want bool
	}{
		{0x4fff, false},
		{0x5000, true},
		{0x5fff, true},
		{0x6000, false},
	}
	for _, c := range cases {
		if got := a.Reserved(c.addr); got != c.want {
			t.Fatalf("Reserved(%#x) = %v, want %v", c.addr, got, c.want)
		}
	}
}

func TestReservedRange(t *testing.T) {
	a := New()
	// Sub-page reservation in the middle of a frame.
	if err := a.Reserve(0x5100, 0x100); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	cases := []struct {
		base types.PhysAddr
		size uint64
		want bool
	}{
		{0x5000, 0x1000, true}, // frame covering the span
		{0x5000, 0x100, false}, // stops right at the span
		{0x51ff, 0x1, true},    // last reserved byte
		{0x5200, 0x1000, false},
		{0x4000, 0x1000, false},
	}
	for _, c := range cases {
		if got := a.ReservedRange(c.base, c.size); got != c.want {
			t.Fatalf("ReservedRange(%#x, %#x) = %v, want %v", c.base, c.size, got, c.want)
		}
	}
}
