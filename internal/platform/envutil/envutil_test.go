package envutil

import (
	"testing"
	"time"
)

func TestReaders(t *testing.T) {
	t.Setenv("ENVUTIL_INT", "42")
	t.Setenv("ENVUTIL_BAD_INT", "x")
	t.Setenv("ENVUTIL_FLOAT", "0.7")
	t.Setenv("ENVUTIL_BOOL", "off")
	t.Setenv("ENVUTIL_SECONDS", "0")
	t.Setenv("ENVUTIL_NEG_SECONDS", "-3")
	t.Setenv("ENVUTIL_LIST", " a, ,b ")

	if got := Int("ENVUTIL_INT", 1); got != 42 {
		t.Fatalf("Int: got %d", got)
	}
	if got := Int("ENVUTIL_BAD_INT", 1); got != 1 {
		t.Fatalf("Int fallback: got %d", got)
	}
	if got := Float("ENVUTIL_FLOAT", 0); got != 0.7 {
		t.Fatalf("Float: got %v", got)
	}
	if got := Bool("ENVUTIL_BOOL", true); got {
		t.Fatalf("Bool: expected false")
	}
	if got := Bool("ENVUTIL_UNSET", true); !got {
		t.Fatalf("Bool default: expected true")
	}
	if got := Seconds("ENVUTIL_SECONDS", 10*time.Second); got != 0 {
		t.Fatalf("Seconds zero: got %v", got)
	}
	if got := Seconds("ENVUTIL_NEG_SECONDS", 10*time.Second); got != 10*time.Second {
		t.Fatalf("Seconds negative: got %v", got)
	}
	if got := List("ENVUTIL_LIST", nil); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("List: got %#v", got)
	}
	if got := String("ENVUTIL_UNSET", "def"); got != "def" {
		t.Fatalf("String default: got %q", got)
	}
}
