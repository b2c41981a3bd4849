package query

import "testing"

func TestReachabilityJoinsWithAnd(t *testing.T) {
	got := Reachability([]string{"recipe0", "recipe1"})
	want := "E<> recipe0.done and recipe1.done"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestReachabilityEmpty(t *testing.T) {
	if got := Reachability(nil); got != "E<>" {
		t.Fatalf("got %q", got)
	}
}
