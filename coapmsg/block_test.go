package coapmsg

import "testing"

func TestBlockOptionRoundTrip(t *testing.T) {
	nums := []uint32{0, 1, 15, 16, 4095, 4096, 1048575}

	for _, num := range nums {
		for _, more := range []bool{false, true} {
			for szx := uint8(0); szx <= 6; szx++ {
				in := BlockOption{Num: num, More: more, SZX: szx}
				raw, err := in.Marshal()
				if err != nil {
					t.Fatalf("Marshal(%+v) failed: %v", in, err)
				}
				if len(raw) < 1 || len(raw) > 3 {
					t.Fatalf("Marshal(%+v) produced %d bytes, want 1-3", in, len(raw))
				}

				out, err := DecodeBlockOption(raw)
				if err != nil {
					t.Fatalf("DecodeBlockOption(%x) failed: %v", raw, err)
				}
				if out != in {
					t.Errorf("round trip mismatch: in=%+v out=%+v raw=%x", in, out, raw)
				}
			}
		}
	}
}

func TestBlockOptionWidth(t *testing.T) {
	cases := []struct {
		num       uint32
		wantBytes int
	}{
		{0, 1},
		{15, 1},
		{16, 2},
		{4095, 2},
		{4096, 3},
		{1048575, 3},
	}

	for _, c := range cases {
		raw, err := BlockOption{Num: c.num}.Marshal()
		if err != nil {
			t.Fatalf("Marshal(num=%d) failed: %v", c.num, err)
		}
		if len(raw) != c.wantBytes {
			t.Errorf("Marshal(num=%d) = %d bytes, want %d", c.num, len(raw), c.wantBytes)
		}
	}
}

func TestBlockOptionInvalid(t *testing.T) {
	if _, err := (BlockOption{Num: 1 << 20}).Marshal(); err == nil {
		t.Error("expected error for out-of-range block number")
	}
	if _, err := (BlockOption{SZX: 7}).Marshal(); err == nil {
		t.Error("expected error for out-of-range SZX")
	}
	if _, err := DecodeBlockOption([]byte{1, 2, 3, 4}); err == nil {
		t.Error("expected error for 4-byte block option")
	}
}

func TestBlockOptionSize(t *testing.T) {
	b := BlockOption{SZX: 2}
	if got := b.Size(); got != 64 {
		t.Errorf("Size() = %d, want 64", got)
	}
}
