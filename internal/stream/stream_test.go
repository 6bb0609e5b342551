package stream

import "testing"

func fixedClock(ms uint64) func() uint64 {
	return func() uint64 { return ms }
}

func mustAdd(t *testing.T, s *Stream, id string, now func() uint64) ID {
	t.Helper()
	got, err := s.Add(id, []FieldValue{{Field: "f", Value: "v"}}, now)
	if err != nil {
		t.Fatalf("Add(%q) unexpected error: %v", id, err)
	}
	return got
}

func TestAddZeroAlwaysFails(t *testing.T) {
	s := New()
	if _, err := s.Add("0-0", nil, fixedClock(1)); err == nil {
		t.Fatal("expected error inserting 0-0")
	}
}

func TestAddMonotonicSequence(t *testing.T) {
	s := New()
	got := mustAdd(t, s, "1-5", fixedClock(1))
	if got.String() != "1-5" {
		t.Fatalf("got %s, want 1-5", got)
	}
	if _, err := s.Add("1-3", nil, fixedClock(1)); err == nil {
		t.Fatal("expected error inserting ID <= top without mutating stream")
	}
	if s.Len() != 1 {
		t.Fatalf("failed insert must not mutate stream, len=%d", s.Len())
	}
}

func TestGeneratePartialSequence(t *testing.T) {
	s := New()
	mustAdd(t, s, "5-3", fixedClock(1))
	got := mustAdd(t, s, "5-*", fixedClock(1))
	if got.String() != "5-4" {
		t.Fatalf("got %s, want 5-4", got)
	}
}

func TestGeneratePartialSequenceOnEmptyStream(t *testing.T) {
	s := New()
	got := mustAdd(t, s, "5-*", fixedClock(1))
	if got.String() != "5-0" {
		t.Fatalf("got %s, want 5-0", got)
	}
}

func TestGenerateFullyImplicit(t *testing.T) {
	s := New()
	clock := uint64(100)
	id1 := mustAdd(t, s, "*", func() uint64 { return clock })
	clock = 100
	id2 := mustAdd(t, s, "*", func() uint64 { return clock })
	if id1.Ms > id2.Ms || (id1.Ms == id2.Ms && id1.Seq >= id2.Seq && !id1.Less(id2)) {
		t.Fatalf("expected strictly increasing IDs, got %s then %s", id1, id2)
	}
}

func TestRangeBoundaries(t *testing.T) {
	s := New()
	for _, id := range []string{"5-2", "5-3", "5-5", "5-6", "5-7"} {
		mustAdd(t, s, id, fixedClock(5))
	}

	got, err := s.Range("5-3", "5-6")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"5-3", "5-5", "5-6"}
	assertIDs(t, got, want)

	got, err = s.Range("(5-3", "5-6")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIDs(t, got, []string{"5-5", "5-6"})

	got, err = s.Range("5", "6")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIDs(t, got, []string{"5-2", "5-3", "5-5", "5-6", "5-7"})
}

func TestRangeOpenEnded(t *testing.T) {
	s := New()
	mustAdd(t, s, "1-1", fixedClock(1))
	mustAdd(t, s, "2-1", fixedClock(2))

	got, err := s.Range("-", "+")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIDs(t, got, []string{"1-1", "2-1"})
}

func assertIDs(t *testing.T, got []Record, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d (%v)", len(got), len(want), got)
	}
	for i, r := range got {
		if r.ID.String() != want[i] {
			t.Errorf("record %d = %s, want %s", i, r.ID, want[i])
		}
	}
}
