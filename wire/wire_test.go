package wire

import "testing"

func TestSliceBounds(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}

	if _, ok := Slice(buf, 0, 5); !ok {
		t.Fatalf("expected full-length slice to succeed")
	}
	if _, ok := Slice(buf, 3, 3); ok {
		t.Fatalf("expected out-of-bounds slice to fail")
	}
	if _, ok := Slice(buf, -1, 2); ok {
		t.Fatalf("expected negative offset to fail")
	}
}

func TestEqual(t *testing.T) {
	if !Equal([]byte("Art-Net\x00extra"), []byte("Art-Net\x00")) {
		t.Fatalf("expected prefix match")
	}
	if Equal([]byte("short"), []byte("longer-magic")) {
		t.Fatalf("expected short buffer to fail magic match")
	}
}

func TestSequenceGap(t *testing.T) {
	cases := []struct {
		prev, seq uint8
		gap       bool
	}{
		{0, 0, false},  // both sentinel
		{0, 5, false},  // prev never seen
		{5, 0, false},  // sender stopped tracking
		{5, 6, false},  // contiguous
		{255, 0, false}, // wraps to sentinel, exempt
		{5, 8, true},   // skipped frames
		{8, 5, true},   // went backwards
	}
	for _, c := range cases {
		if got := SequenceGap(c.prev, c.seq); got != c.gap {
			t.Errorf("SequenceGap(%d, %d) = %v, want %v", c.prev, c.seq, got, c.gap)
		}
	}
}

func TestNullTerminated(t *testing.T) {
	if s := NullTerminated([]byte("hello\x00world")); s != "hello" {
		t.Fatalf("expected truncation at NUL, got %q", s)
	}
	if s := NullTerminated([]byte("no-nul")); s != "no-nul" {
		t.Fatalf("expected whole slice when no NUL present, got %q", s)
	}
}
