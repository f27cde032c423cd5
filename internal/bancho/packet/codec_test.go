package packet

import (
	"bytes"
	"testing"
)

func TestScalarRoundTrip(t *testing.T) {
	w := NewWriter()
	w.U8(0xFF).I8(-1).U16(0xBEEF).I16(-100).U32(0xDEADBEEF).I32(-1234567).
		U64(0x0102030405060708).I64(-1).F32(3.14159)
	r := NewReader(w.Payload())

	if v, err := r.U8(); err != nil || v != 0xFF {
		t.Fatalf("U8 = %v, %v", v, err)
	}
	if v, err := r.I8(); err != nil || v != -1 {
		t.Fatalf("I8 = %v, %v", v, err)
	}
	if v, err := r.U16(); err != nil || v != 0xBEEF {
		t.Fatalf("U16 = %v, %v", v, err)
	}
	if v, err := r.I16(); err != nil || v != -100 {
		t.Fatalf("I16 = %v, %v", v, err)
	}
	if v, err := r.U32(); err != nil || v != 0xDEADBEEF {
		t.Fatalf("U32 = %v, %v", v, err)
	}
	if v, err := r.I32(); err != nil || v != -1234567 {
		t.Fatalf("I32 = %v, %v", v, err)
	}
	if v, err := r.U64(); err != nil || v != 0x0102030405060708 {
		t.Fatalf("U64 = %v, %v", v, err)
	}
	if v, err := r.I64(); err != nil || v != -1 {
		t.Fatalf("I64 = %v, %v", v, err)
	}
	if v, err := r.F32(); err != nil || v != 3.14159 {
		t.Fatalf("F32 = %v, %v", v, err)
	}
	if !r.Empty() {
		t.Fatalf("expected reader to be exhausted")
	}
}

func TestStringRoundTrip(t *testing.T) {
	cases := []string{"", "a", "hello, world", "日本語"}
	for _, s := range cases {
		w := NewWriter()
		w.String(s)
		r := NewReader(w.Payload())
		got, err := r.String()
		if err != nil {
			t.Fatalf("String(%q): %v", s, err)
		}
		if got != s {
			t.Fatalf("String round trip: got %q, want %q", got, s)
		}
	}
}

func TestStringZeroPrefixIsEmpty(t *testing.T) {
	r := NewReader([]byte{0x00})
	s, err := r.String()
	if err != nil || s != "" {
		t.Fatalf("got %q, %v; want empty string", s, err)
	}
}

func TestStringInvalidPrefix(t *testing.T) {
	r := NewReader([]byte{0x01})
	if _, err := r.String(); err == nil {
		t.Fatalf("expected error for invalid string prefix")
	}
}

func TestIntListRoundTrip(t *testing.T) {
	vals := []int32{1, -2, 3, 1000000}
	w := NewWriter()
	w.IntList(vals)
	r := NewReader(w.Payload())
	got, err := r.IntList()
	if err != nil {
		t.Fatalf("IntList: %v", err)
	}
	if len(got) != len(vals) {
		t.Fatalf("got %d values, want %d", len(got), len(vals))
	}
	for i := range vals {
		if got[i] != vals[i] {
			t.Fatalf("element %d: got %d, want %d", i, got[i], vals[i])
		}
	}
}

func TestSplitFramesRoundTrip(t *testing.T) {
	f1 := NewWriter().String("alice").Finish(OSUSendPublicMessage)
	f2 := NewWriter().I32(42).Finish(SRVUserStats)
	stream := append(append([]byte{}, f1...), f2...)

	frames, err := SplitFrames(stream)
	if err != nil {
		t.Fatalf("SplitFrames: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].ID != OSUSendPublicMessage {
		t.Fatalf("frame 0 id = %d", frames[0].ID)
	}
	if frames[1].ID != SRVUserStats {
		t.Fatalf("frame 1 id = %d", frames[1].ID)
	}

	name, err := NewReader(frames[0].Payload).String()
	if err != nil || name != "alice" {
		t.Fatalf("frame 0 payload decode: %q, %v", name, err)
	}
}

func TestSplitFramesTruncatedTail(t *testing.T) {
	full := NewWriter().String("x").Finish(OSUSendPublicMessage)
	truncated := full[:len(full)-1]

	frames, err := SplitFrames(truncated)
	if err == nil {
		t.Fatalf("expected an error for a truncated frame")
	}
	if len(frames) != 0 {
		t.Fatalf("expected no frames decoded before the truncation")
	}
}

func TestULEB128Zero(t *testing.T) {
	w := NewWriter()
	w.uleb128(0)
	if !bytes.Equal(w.Payload(), []byte{0x00}) {
		t.Fatalf("uleb128(0) = %x, want [0x00]", w.Payload())
	}
}
