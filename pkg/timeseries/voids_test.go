package timeseries

import (
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC)

func mk(minutes int, v float64) Sample {
	return Sample{Time: t0.Add(time.Duration(minutes) * time.Minute), Value: v}
}

func TestDetectVoids(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name    string
		samples Series
		want    []VoidInterval
	}{
		{
			name:    "all valid",
			samples: Series{mk(0, 1), mk(10, 2), mk(20, 3)},
			want:    nil,
		},
		{
			name:    "single interior gap",
			samples: Series{mk(0, 1), mk(10, nan), mk(20, 3)},
			want: []VoidInterval{
				{Start: t0.Add(10 * time.Minute), End: t0.Add(20 * time.Minute)},
			},
		},
		{
			name:    "adjacent gaps coalesce",
			samples: Series{mk(0, 1), mk(10, nan), mk(20, nan), mk(30, 4)},
			want: []VoidInterval{
				{Start: t0.Add(10 * time.Minute), End: t0.Add(30 * time.Minute)},
			},
		},
		{
			name:    "trailing gap closes at own timestamp",
			samples: Series{mk(0, 1), mk(10, nan)},
			want: []VoidInterval{
				{Start: t0.Add(10 * time.Minute), End: t0.Add(10 * time.Minute)},
			},
		},
		{
			name:    "two separated gaps stay separate",
			samples: Series{mk(0, nan), mk(10, 2), mk(20, nan), mk(30, 4)},
			want: []VoidInterval{
				{Start: t0, End: t0.Add(10 * time.Minute)},
				{Start: t0.Add(20 * time.Minute), End: t0.Add(30 * time.Minute)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectVoids(tt.samples)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d voids, got %d: %v", len(tt.want), len(got), got)
			}
			for i := range got {
				if !got[i].Start.Equal(tt.want[i].Start) || !got[i].End.Equal(tt.want[i].End) {
					t.Errorf("void %d: expected [%v, %v), got [%v, %v)",
						i, tt.want[i].Start, tt.want[i].End, got[i].Start, got[i].End)
				}
			}
		})
	}
}

// Voids and valid spans must tile [first, last] with no overlap.
func TestVoidCoverageTiling(t *testing.T) {
	nan := math.NaN()
	s := Series{mk(0, 1), mk(5, nan), mk(10, nan), mk(15, 2), mk(20, nan), mk(25, 3), mk(30, 4)}
	voids := DetectVoids(s)

	for i := 1; i < len(voids); i++ {
		if !voids[i-1].End.Before(voids[i].Start) {
			t.Errorf("voids %d and %d overlap or touch without coalescing", i-1, i)
		}
	}
	for _, smp := range s {
		inVoid := false
		for _, v := range voids {
			if v.Contains(smp.Time) {
				inVoid = true
			}
		}
		if IsMissing(smp.Value) != inVoid {
			t.Errorf("sample at %v: missing=%v but inVoid=%v", smp.Time, IsMissing(smp.Value), inVoid)
		}
	}
}

func TestNewRejectsNonIncreasingTimestamps(t *testing.T) {
	_, err := New([]Sample{mk(10, 1), mk(10, 2)})
	if err == nil {
		t.Fatal("expected error for duplicate timestamps")
	}
	_, err = New([]Sample{mk(10, 1), mk(5, 2)})
	if err == nil {
		t.Fatal("expected error for decreasing timestamps")
	}
}
