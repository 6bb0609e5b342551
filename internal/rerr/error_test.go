package rerr

import "testing"

func TestIsIncompleteOnlyMatchesIncompleteSentinel(t *testing.T) {
	if !IsIncomplete(Incomplete()) {
		t.Fatal("IsIncomplete(Incomplete()) = false, want true")
	}
	if IsIncomplete(Argument("bad arity")) {
		t.Fatal("IsIncomplete(Argument(...)) = true, want false")
	}
	if IsIncomplete(nil) {
		t.Fatal("IsIncomplete(nil) = true, want false")
	}
}

func TestRESPCodeDefaultsToERR(t *testing.T) {
	if got := Argument("bad").RESPCode(); got != "ERR" {
		t.Fatalf("RESPCode() = %q, want ERR", got)
	}
}
