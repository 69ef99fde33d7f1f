package snowflake

import (
	"errors"
	"sync"
	"testing"
)

func TestNewNode(t *testing.T) {
	tests := []struct {
		name    string
		node    int64
		wantErr bool
	}{
		{"node 0", 0, false},
		{"node max", 1023, false},
		{"negative", -1, true},
		{"too large", 1024, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNode(tt.node)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewNode(%d) error = %v, wantErr %v", tt.node, err, tt.wantErr)
			}
		})
	}
}

func TestNext_Increasing(t *testing.T) {
	n, err := NewNode(7)
	if err != nil {
		t.Fatal(err)
	}

	var prev int64
	for i := 0; i < 10000; i++ {
		id, err := n.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		if NodeOf(id) != 7 {
			t.Fatalf("NodeOf(%d) = %d, want 7", id, NodeOf(id))
		}
		prev = id
	}
}

func TestNext_Concurrent(t *testing.T) {
	n, err := NewNode(1)
	if err != nil {
		t.Fatal(err)
	}

	const goroutines, per = 8, 1000
	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, goroutines*per)
		wg   sync.WaitGroup
	)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				id, err := n.Next()
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != goroutines*per {
		t.Errorf("got %d unique ids, want %d", len(seen), goroutines*per)
	}
}

func TestNext_ClockMovedBack(t *testing.T) {
	now := epoch + 1000
	n, err := newNode(1, func() int64 { return now })
	if err != nil {
		t.Fatal(err)
	}

	first, err := n.Next()
	if err != nil {
		t.Fatal(err)
	}
	if got := Time(first).UnixMilli(); got != now {
		t.Errorf("Time() = %d, want %d", got, now)
	}

	now -= 100
	if _, err := n.Next(); !errors.Is(err, ErrClockMovedBack) {
		t.Errorf("Next() error = %v, want ErrClockMovedBack", err)
	}
}
