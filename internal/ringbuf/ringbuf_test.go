package ringbuf

import (
	"testing"

	"trading-analyticsv1/internal/model"
)

func TestWindow_BasicPush(t *testing.T) {
	w := New[model.MinuteCandle](4)

	w.Push(model.MinuteCandle{Symbol: "A", Close: 100})
	w.Push(model.MinuteCandle{Symbol: "B", Close: 200})

	if w.Len() != 2 {
		t.Fatalf("expected len=2, got %d", w.Len())
	}
	if got := w.At(0); got.Symbol != "A" {
		t.Fatalf("expected A at 0, got %s", got.Symbol)
	}
	last, ok := w.Last()
	if !ok || last.Symbol != "B" {
		t.Fatalf("expected last B, got %v ok=%v", last.Symbol, ok)
	}
}

func TestWindow_EmptyLast(t *testing.T) {
	w := New[float64](3)
	if _, ok := w.Last(); ok {
		t.Fatal("Last on empty window should return false")
	}
	if w.Tail(5) != nil {
		t.Fatal("Tail on empty window should be nil")
	}
}

func TestWindow_OverwritesOldest(t *testing.T) {
	w := New[float64](3)
	for i := 1; i <= 5; i++ {
		w.Push(float64(i))
	}

	if w.Len() != 3 {
		t.Fatalf("expected len=3, got %d", w.Len())
	}
	if w.Dropped() != 2 {
		t.Fatalf("expected dropped=2, got %d", w.Dropped())
	}
	if w.Pushed() != 5 {
		t.Fatalf("expected pushed=5, got %d", w.Pushed())
	}

	got := w.Slice()
	want := []float64{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("slice[%d]: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestWindow_Wraparound(t *testing.T) {
	w := New[int](4)

	// Many rounds so the write index wraps repeatedly.
	for round := 0; round < 5; round++ {
		for i := 0; i < 4; i++ {
			w.Push(round*10 + i)
		}
		tail := w.Tail(4)
		for i := 0; i < 4; i++ {
			if tail[i] != round*10+i {
				t.Fatalf("round %d idx %d: expected %d, got %d", round, i, round*10+i, tail[i])
			}
		}
	}
}

func TestWindow_TailShorterThanLen(t *testing.T) {
	w := New[int](10)
	for i := 0; i < 7; i++ {
		w.Push(i)
	}
	tail := w.Tail(3)
	if len(tail) != 3 || tail[0] != 4 || tail[2] != 6 {
		t.Fatalf("unexpected tail %v", tail)
	}
	if len(w.Tail(20)) != 7 {
		t.Fatalf("Tail larger than len should return all values")
	}
}

func TestWindow_Reset(t *testing.T) {
	w := New[int](2)
	w.Push(1)
	w.Push(2)
	w.Push(3)
	w.Reset()
	if w.Len() != 0 || w.Dropped() != 0 || w.Pushed() != 0 {
		t.Fatalf("reset window not empty: len=%d dropped=%d", w.Len(), w.Dropped())
	}
}

func TestWindow_MinCapacity(t *testing.T) {
	w := New[int](0)
	if w.Cap() != 1 {
		t.Fatalf("expected cap=1, got %d", w.Cap())
	}
}

func TestWindow_AtOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New[int](2).At(0)
}
