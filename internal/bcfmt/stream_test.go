package bcfmt

import (
	"errors"
	"testing"
)

func TestStream_LittleEndian(t *testing.T) {
	s := NewStream([]byte{0x01, 0x34, 0x12, 0x78, 0x56, 0x34, 0x12, 0xff, 0xff})
	b, err := s.ReadUint8()
	if err != nil || b != 1 {
		t.Fatalf("ReadUint8 = %d, %v", b, err)
	}
	u16, err := s.ReadUint16()
	if err != nil || u16 != 0x1234 {
		t.Fatalf("ReadUint16 = 0x%x, %v", u16, err)
	}
	u32, err := s.ReadUint32()
	if err != nil || u32 != 0x12345678 {
		t.Fatalf("ReadUint32 = 0x%x, %v", u32, err)
	}
	i16, err := s.ReadInt16()
	if err != nil || i16 != -1 {
		t.Fatalf("ReadInt16 = %d, %v", i16, err)
	}
	if s.Remaining() != 0 {
		t.Errorf("remaining = %d, want 0", s.Remaining())
	}
}

func TestStream_EOF(t *testing.T) {
	tests := []struct {
		name string
		read func(*Stream) error
	}{
		{"u8", func(s *Stream) error { _, err := s.ReadUint8(); return err }},
		{"u16", func(s *Stream) error { _, err := s.ReadUint16(); return err }},
		{"u32", func(s *Stream) error { _, err := s.ReadUint32(); return err }},
		{"u64", func(s *Stream) error { _, err := s.ReadUint64(); return err }},
	}
	for _, tt := range tests {
		s := NewStreamAt([]byte{0}, 1)
		if err := tt.read(s); !errors.Is(err, ErrStreamEOF) {
			t.Errorf("%s: err = %v, want ErrStreamEOF", tt.name, err)
		}
	}
}

func TestStream_SetPosition(t *testing.T) {
	s := NewStream(make([]byte, 4))
	if err := s.SetPosition(5); !errors.Is(err, ErrStreamOverrun) {
		t.Errorf("SetPosition(5) = %v, want ErrStreamOverrun", err)
	}
	if err := s.SetPosition(4); err != nil {
		t.Errorf("SetPosition(4) = %v", err)
	}
	if err := s.Skip(1); !errors.Is(err, ErrStreamEOF) {
		t.Errorf("Skip past end = %v, want ErrStreamEOF", err)
	}
}

func TestDiags(t *testing.T) {
	var d Diags
	d.Addf(4, DiagTyping, "register v%d undefined", 2)
	d.Add(-1, DiagReachability, "dead code")
	if d.Len() != 2 {
		t.Fatalf("len = %d, want 2", d.Len())
	}
	if got := d.Items()[0].String(); got != "[typing] 0x4: register v2 undefined" {
		t.Errorf("String() = %q", got)
	}
	if got := d.Items()[1].String(); got != "[reachability] dead code" {
		t.Errorf("String() = %q", got)
	}
	if !d.Has(DiagTyping) || d.Has(DiagLinkage) {
		t.Error("Has mismatch")
	}
	if DiagReachability.Fatal() || !DiagStructural.Fatal() {
		t.Error("Fatal mismatch")
	}
}

func TestEffectiveMaxSteps(t *testing.T) {
	tests := []struct {
		set, want int
	}{
		{0, DefaultMaxSteps},
		{-1, DefaultMaxSteps},
		{64, 64},
	}
	for _, tt := range tests {
		if got := (Options{MaxSteps: tt.set}).EffectiveMaxSteps(); got != tt.want {
			t.Errorf("MaxSteps %d: got %d, want %d", tt.set, got, tt.want)
		}
	}
}
