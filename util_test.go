package kvtree

import (
	"errors"
	"math"
	"testing"
)

func TestRpad(t *testing.T) {
	if got := rpad("abc", 5, '.'); got != "abc.." {
		t.Fatalf("rpad = %q, wanted %q", got, "abc..")
	}
	if got := rpad("abc", 1, '.'); got != "abc" {
		t.Fatalf("rpad = %q, wanted %q", got, "abc")
	}
}

func TestMust(t *testing.T) {
	if got := must(42, nil); got != 42 {
		t.Fatalf("must = %d, wanted 42", got)
	}
	defer func() {
		if p := recover(); p == nil {
			t.Fatalf("must did not panic on error")
		}
	}()
	must(0, errors.New("boom"))
}

func TestLoggableVal(t *testing.T) {
	if got := loggableVal("x"); got != `"x"` {
		t.Fatalf("loggableVal = %s, wanted %q", got, `"x"`)
	}
	if got := loggableVal(nil); got != "null" {
		t.Fatalf("loggableVal(nil) = %s, wanted null", got)
	}
	if got := loggableVal(math.NaN()); got == "" {
		t.Fatalf("loggableVal(NaN) is empty")
	}
}
