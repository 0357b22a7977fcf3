package store

import "testing"

func TestStreamInsertMonotonic(t *testing.T) {
	s := NewStream()
	if err := s.Insert(StreamID{Ms: 1, Seq: 1}, nil); err != nil {
		t.Fatalf("expected first insert to succeed: %v", err)
	}
	if err := s.Insert(StreamID{Ms: 1, Seq: 1}, nil); err != ErrStreamIDNotIncreasing {
		t.Fatalf("expected equal ID insert to fail with %v, got %v", ErrStreamIDNotIncreasing, err)
	}
	if err := s.Insert(StreamID{Ms: 1, Seq: 0}, nil); err != ErrStreamIDNotIncreasing {
		t.Fatalf("expected smaller ID insert to fail with %v, got %v", ErrStreamIDNotIncreasing, err)
	}
	if err := s.Insert(StreamID{Ms: 2, Seq: 0}, nil); err != nil {
		t.Fatalf("expected greater ID insert to succeed: %v", err)
	}
	max, ok := s.Max()
	if !ok || max != (StreamID{Ms: 2, Seq: 0}) {
		t.Fatalf("unexpected max: %v %v", max, ok)
	}
}

func TestZeroZeroRejected(t *testing.T) {
	s := NewStream()
	if err := s.Insert(StreamID{}, nil); err != ErrStreamIDZero {
		t.Fatalf("0-0 must be rejected with %v, got %v", ErrStreamIDZero, err)
	}
}

func TestAllocateSeqForMs(t *testing.T) {
	s := NewStream()
	id, err := s.AllocateSeqForMs(0)
	if err != nil || id != (StreamID{Ms: 0, Seq: 1}) {
		t.Fatalf("empty-stream 0-* should yield 0-1, got %v %v", id, err)
	}
	s.Insert(id, nil)

	id2, err := s.AllocateSeqForMs(0)
	if err != nil || id2 != (StreamID{Ms: 0, Seq: 2}) {
		t.Fatalf("same-ms allocation should bump seq, got %v %v", id2, err)
	}
	s.Insert(id2, nil)

	id3, err := s.AllocateSeqForMs(5)
	if err != nil || id3 != (StreamID{Ms: 5, Seq: 0}) {
		t.Fatalf("greater ms should reset seq to 0, got %v %v", id3, err)
	}
	s.Insert(id3, nil)

	if _, err := s.AllocateSeqForMs(3); err == nil {
		t.Fatal("expected failure allocating smaller ms than current max")
	}
}

func TestRangeAndAfter(t *testing.T) {
	s := NewStream()
	ids := []StreamID{{1, 0}, {2, 0}, {3, 0}, {4, 0}}
	for _, id := range ids {
		s.Insert(id, []FieldValue{{Field: "f", Value: []byte("v")}})
	}

	r := s.Range(MinID, MaxID)
	if len(r) != 4 {
		t.Fatalf("expected 4 entries in full range, got %d", len(r))
	}

	r2 := s.Range(StreamID{2, 0}, StreamID{3, 0})
	if len(r2) != 2 || r2[0].ID != (StreamID{2, 0}) {
		t.Fatalf("unexpected bounded range: %v", r2)
	}

	after := s.After(StreamID{2, 0})
	if len(after) != 2 || after[0].ID != (StreamID{3, 0}) {
		t.Fatalf("unexpected After: %v", after)
	}
}
