package protocol

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeResponse(t *testing.T) {
	cases := map[string]string{
		"HM8143\r\n":  "HM8143",
		"U1:12.00V\n": "U1:12.00V",
		"OP1 CV1\r":   "OP1 CV1",
		"no newline":  "no newline",
		"\r\n":        "",
	}
	for in, want := range cases {
		if got := DecodeResponse(in); got != want {
			t.Errorf("DecodeResponse(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecodeArbitraryProgram(t *testing.T) {
	prog, n, err := DecodeArbitraryProgram("ABT:A20.00_115.00_702.00_N2")
	if err != nil {
		t.Fatal(err)
	}
	want := Program{
		{Duration: time.Second, Voltage: 20},
		{Duration: time.Millisecond, Voltage: 15},
		{Duration: 100 * time.Millisecond, Voltage: 2},
	}
	if n != 2 {
		t.Errorf("iterations = %d, want 2", n)
	}
	if len(prog) != len(want) {
		t.Fatalf("got %d steps, want %d", len(prog), len(want))
	}
	for i := range want {
		if prog[i] != want[i] {
			t.Errorf("step %d = %+v, want %+v", i, prog[i], want[i])
		}
	}
}

func TestDecodeArbitraryProgramEmpty(t *testing.T) {
	prog, n, err := DecodeArbitraryProgram("ABT:N0")
	if err != nil {
		t.Fatal(err)
	}
	if len(prog) != 0 || n != 0 {
		t.Errorf("got %v, %d", prog, n)
	}
}

func TestDecodeArbitraryProgramErrors(t *testing.T) {
	for _, in := range []string{
		"SU1:06.90",
		"ABT:A20.00_",
		"ABT:A20.00_Nx",
		"ABT:Z20.00_N1",
		"ABT:A_N1",
		"ABT:A20.00_N256",
	} {
		if _, _, err := DecodeArbitraryProgram(in); err == nil {
			t.Errorf("DecodeArbitraryProgram(%q) succeeded", in)
		}
	}
	_, _, err := DecodeArbitraryProgram("ABT:Z20.00_N1")
	if !errors.Is(err, ErrUnsupportedDuration) {
		t.Errorf("err = %v, want ErrUnsupportedDuration", err)
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	err := &TransportError{Op: "读取", Err: ErrTimeout}
	if !IsTimeout(err) {
		t.Errorf("IsTimeout(%v) = false", err)
	}
	if errors.Is(err, ErrValidation) {
		t.Errorf("transport error matched ErrValidation")
	}
}
