package protocol

import "testing"

func TestTickEncodeRoundTrip(t *testing.T) {
	for b := 0; b < 256; b++ {
		ticks := TickEncode(byte(b))
		var asm BitAssembler
		var got byte
		var ok bool
		for _, tick := range ticks {
			got, ok, _ = asm.Feed(tick)
		}
		if !ok {
			t.Fatalf("byte %d: expected assembled byte after 3 ticks, got none", b)
		}
		if got != byte(b) {
			t.Errorf("byte %d: round-trip mismatch, got %d", b, got)
		}
	}
}

func TestBitAssemblerMultipleBytes(t *testing.T) {
	var asm BitAssembler
	input := []byte{0x00, 0x41, 0xFF, 0x80}
	var out []byte
	for _, b := range input {
		for _, tick := range TickEncode(b) {
			got, ok, _ := asm.Feed(tick)
			if ok {
				out = append(out, got)
			}
		}
	}
	if len(out) != len(input) {
		t.Fatalf("expected %d assembled bytes, got %d", len(input), len(out))
	}
	for i := range input {
		if out[i] != input[i] {
			t.Errorf("byte %d: want 0x%02x got 0x%02x", i, input[i], out[i])
		}
	}
}

func TestBitAssemblerInvalidTickResets(t *testing.T) {
	var asm BitAssembler
	var resetAt = -1
	for i := 0; i < InvalidTickLimit+5; i++ {
		_, _, needsReset := asm.Feed(0xFF)
		if needsReset {
			resetAt = i
			break
		}
	}
	if resetAt != InvalidTickLimit-1 {
		t.Errorf("expected reset signal at tick %d, got %d", InvalidTickLimit-1, resetAt)
	}
}

func TestBitAssemblerReset(t *testing.T) {
	var asm BitAssembler
	asm.Feed(TickEncode(0x41)[0])
	asm.Reset()
	_, ok, _ := asm.Feed(TickEncode(0x42)[0])
	if ok {
		t.Fatalf("expected no assembled byte after only one tick post-reset")
	}
}
