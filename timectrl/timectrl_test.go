package timectrl

import (
	"sync"
	"testing"
	"time"
)

func TestControllerSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewController(start)
	if got := tc.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestControllerConcurrentAccess(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewController(start)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tc.SetTime(start.Add(time.Duration(i) * time.Hour))
		}()
		go func() {
			defer wg.Done()
			_ = tc.Now()
		}()
	}
	wg.Wait()

	if got := tc.Now(); got.Before(start) || got.After(start.Add(7*time.Hour)) {
		t.Fatalf("Now() = %v, want within the set range", got)
	}
}

func TestSystemClockIsUTC(t *testing.T) {
	var c Clock = System{}
	if loc := c.Now().Location(); loc != time.UTC {
		t.Fatalf("System.Now().Location() = %v, want UTC", loc)
	}
}
