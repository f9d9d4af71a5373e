//go:build unix

package physmem

import (
	"bytes"
	"testing"
)

func TestMapZeroFilled(t *testing.T) {
	r, err := Map(1 << 16)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	defer r.Close()

	b := r.Bytes(0, 1<<16)
	if !bytes.Equal(b, make([]byte, 1<<16)) {
		t.Fatalf("region not zero-filled")
	}
}

func TestMapWriteVisible(t *testing.T) {
	r, err := Map(1 << 16)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	defer r.Close()

	copy(r.Bytes(4096, 4), []byte{1, 2, 3, 4})
	got := r.Bytes(4096, 4)
	if got[0] != 1 || got[3] != 4 {
		t.Fatalf("write not visible: %v", got)
	}
}

func TestCloseTwice(t *testing.T) {
	r, err := Map(4096)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestMapZeroSize(t *testing.T) {
	if _, err := Map(0); err == nil {
		t.Fatalf("expected error for zero-size region")
	}
}
