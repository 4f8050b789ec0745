package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/signalsfoundry/rocketflight/internal/store"
	"github.com/signalsfoundry/rocketflight/internal/store/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, New())
}

func TestReturnedDocumentsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	id, err := s.Insert(ctx, "motor", store.Document{"thrust_source": []any{[]any{0.0, 0.0}}})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := s.Get(ctx, "motor", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got["thrust_source"] = "mutated"

	again, err := s.Get(ctx, "motor", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := again["thrust_source"].([]any); !ok {
		t.Fatalf("thrust_source = %v, want the stored list", again["thrust_source"])
	}
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := s.Insert(ctx, "motor", store.Document{}); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("Insert err = %v, want ErrUnavailable", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("Ping err = %v, want ErrUnavailable", err)
	}
}

func TestCancelledContextIsUnavailable(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Get(ctx, "motor", "x"); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("Get err = %v, want ErrUnavailable", err)
	}
}
