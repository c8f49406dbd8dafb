package focus

import (
	"slices"
	"testing"
)

func TestRollingBuffer_EvictsOldest(t *testing.T) {
	b := NewRollingBuffer[float64](10)
	for i := 0; i < 15; i++ {
		b.Push(float64(i))
		if b.Len() > b.Cap() {
			t.Fatalf("Buffer grew past capacity: len=%d cap=%d", b.Len(), b.Cap())
		}
	}

	want := []float64{5, 6, 7, 8, 9, 10, 11, 12, 13, 14}
	if got := b.Values(); !slices.Equal(got, want) {
		t.Errorf("Values() = %v, want %v", got, want)
	}
	if got := b.Mean(); got != 9.5 {
		t.Errorf("Mean() = %v, want 9.5", got)
	}
}

func TestRollingBuffer_WarmUp(t *testing.T) {
	b := NewRollingBuffer[int](4)
	if b.Mean() != 0 {
		t.Errorf("Empty buffer mean should be 0, got %v", b.Mean())
	}
	b.Push(2)
	b.Push(4)
	if b.Len() != 2 || b.Mean() != 3 {
		t.Errorf("Expected len=2 mean=3, got len=%d mean=%v", b.Len(), b.Mean())
	}
}

func TestRollingBuffer_Reset(t *testing.T) {
	b := NewRollingBuffer[float64](3)
	for i := 0; i < 5; i++ {
		b.Push(1)
	}
	b.Reset()
	if b.Len() != 0 || b.Cap() != 3 {
		t.Errorf("After Reset expected len=0 cap=3, got len=%d cap=%d", b.Len(), b.Cap())
	}
	b.Push(7)
	if got := b.Values(); !slices.Equal(got, []float64{7}) {
		t.Errorf("Values() after reset = %v", got)
	}
}

func TestRollingBuffer_MinimumCapacity(t *testing.T) {
	b := NewRollingBuffer[float64](0)
	b.Push(1)
	b.Push(2)
	if b.Cap() != 1 || b.Mean() != 2 {
		t.Errorf("Expected capacity 1 holding the latest value, got cap=%d mean=%v", b.Cap(), b.Mean())
	}
}
