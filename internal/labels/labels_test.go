package labels

import (
	"sync"
	"testing"
)

func TestCounterNext(t *testing.T) {
	c := NewCounter()

	tests := []struct {
		prefix string
		want   string
	}{
		{"Road", "Road_0"},
		{"Road", "Road_1"},
		{"Tree", "Tree_0"},
		{"Road", "Road_2"},
	}
	for _, tt := range tests {
		if got := c.Next(tt.prefix); got != tt.want {
			t.Errorf("Next(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}

	c.Reset()
	if got := c.Next("Road"); got != "Road_0" {
		t.Errorf("expected Road_0 after reset, got %s", got)
	}
}

func TestCountersAreIndependent(t *testing.T) {
	a, b := NewCounter(), NewCounter()
	a.Next("Mark")
	a.Next("Mark")
	if got := b.Next("Mark"); got != "Mark_0" {
		t.Errorf("counters share state: got %s", got)
	}
}

func TestCounterConcurrent(t *testing.T) {
	c := NewCounter()
	seen := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := c.Next("Chunk")
			mu.Lock()
			seen[l] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != 50 || c.Count("Chunk") != 50 {
		t.Errorf("expected 50 unique labels, got %d (count %d)", len(seen), c.Count("Chunk"))
	}
}
