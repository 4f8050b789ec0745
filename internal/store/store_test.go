package store

import (
	"context"
	"errors"
	"iter"
	"testing"
)

func TestFilterMatchesAcrossNumericTypes(t *testing.T) {
	doc := Document{"grain_number": 5.0, "motor_kind": "SOLID"}
	if !(Filter{"grain_number": 5}).Matches(doc) {
		t.Fatalf("int filter did not match float field")
	}
	if (Filter{"motor_kind": "LIQUID"}).Matches(doc) {
		t.Fatalf("mismatched value matched")
	}
	if (Filter{"missing": nil}).Matches(doc) {
		t.Fatalf("absent key matched")
	}
	if !(Filter{}).Matches(doc) {
		t.Fatalf("empty filter did not match")
	}
}

func TestStripRemovesID(t *testing.T) {
	doc := Document{IDField: "abc", "a": 1}
	clean, id := Strip(doc)
	if id != "abc" {
		t.Fatalf("id = %q, want abc", id)
	}
	if _, ok := clean[IDField]; ok {
		t.Fatalf("clean still carries %s", IDField)
	}
	if _, ok := doc[IDField]; !ok {
		t.Fatalf("Strip modified its input")
	}
}

func TestWindow(t *testing.T) {
	cases := []struct {
		n, skip, limit int
		lo, hi         int
	}{
		{10, 0, 20, 0, 10},
		{10, 3, 2, 3, 5},
		{10, 12, 5, 10, 10},
		{10, -1, 3, 0, 3},
	}
	for _, tc := range cases {
		lo, hi := Window(tc.n, tc.skip, tc.limit)
		if lo != tc.lo || hi != tc.hi {
			t.Fatalf("Window(%d, %d, %d) = (%d, %d), want (%d, %d)", tc.n, tc.skip, tc.limit, lo, hi, tc.lo, tc.hi)
		}
	}
}

type recordingObserver struct {
	ops  []string
	errs []error
}

func (r *recordingObserver) ObserveStoreOp(collection, op string, err error) {
	r.ops = append(r.ops, collection+"."+op)
	r.errs = append(r.errs, err)
}

type failingStore struct{ Store }

var errBoom = errors.New("boom")

func (failingStore) Get(context.Context, string, string) (Document, error) { return nil, errBoom }

func (failingStore) Find(context.Context, string, Filter) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		if !yield(Document{"a": 1}, nil) {
			return
		}
		yield(nil, errBoom)
	}
}

func TestInstrumentReportsOutcomes(t *testing.T) {
	obs := &recordingObserver{}
	s := Instrument(failingStore{}, obs)
	ctx := context.Background()

	if _, err := s.Get(ctx, "motor", "x"); !errors.Is(err, errBoom) {
		t.Fatalf("Get err = %v, want boom", err)
	}
	for range s.Find(ctx, "motor", nil) {
	}
	if len(obs.ops) != 2 || obs.ops[0] != "motor.get" || obs.ops[1] != "motor.find" {
		t.Fatalf("ops = %v, want [motor.get motor.find]", obs.ops)
	}
	if !errors.Is(obs.errs[1], errBoom) {
		t.Fatalf("find outcome = %v, want boom", obs.errs[1])
	}
}

func TestInstrumentNilObserver(t *testing.T) {
	s := failingStore{}
	if got := Instrument(s, nil); got != Store(s) {
		t.Fatalf("Instrument(nil) wrapped the store")
	}
}
