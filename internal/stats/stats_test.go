package stats

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/pavelanni/sheetcheck/internal/model"
)

// percentages builds a result set with the given student percentages and
// reads them back the way callers feed Aggregate.
func percentages(pcts ...float64) []float64 {
	rs := &model.ResultSet{TotalStudents: len(pcts)}
	for i, p := range pcts {
		rs.Results = append(rs.Results, model.StudentResult{Rank: i + 1, Percentage: p})
	}
	return rs.Percentages()
}

func TestAggregateExample(t *testing.T) {
	got, err := Aggregate(percentages(100, 50, 0))
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if got.Average != 50.0 {
		t.Errorf("Average = %v, want 50.0", got.Average)
	}
	if got.Highest != 100.0 {
		t.Errorf("Highest = %v, want 100.0", got.Highest)
	}
	if got.Lowest != 0.0 {
		t.Errorf("Lowest = %v, want 0.0", got.Lowest)
	}
	if got.PassingRate != 66.7 {
		t.Errorf("PassingRate = %v, want 66.7", got.PassingRate)
	}
	if got.Students != 3 {
		t.Errorf("Students = %d, want 3", got.Students)
	}
	if got.Tiers["Excellent"] != 1 || got.Tiers["Pass"] != 1 || got.Tiers["Needs Improvement"] != 1 {
		t.Errorf("unexpected tier counts: %v", got.Tiers)
	}
	if _, ok := got.Tiers["Good"]; !ok {
		t.Error("empty tiers should still be reported")
	}
}

func TestAggregateEmpty(t *testing.T) {
	var none *model.ResultSet
	for _, in := range [][]float64{nil, {}, none.Percentages(), (&model.ResultSet{}).Percentages()} {
		got, err := Aggregate(in)
		if !errors.Is(err, ErrNoData) {
			t.Fatalf("Aggregate(empty) err = %v, want ErrNoData", err)
		}
		if got.Students != 0 || got.Average != 0 {
			t.Errorf("Aggregate(empty) = %+v, want zero stats", got)
		}
	}
}

func TestAggregateProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		n := 1 + r.IntN(40)
		pcts := make([]float64, n)
		pass := 0
		for j := range pcts {
			pcts[j] = Round1(r.Float64() * 100)
			if pcts[j] >= 50 {
				pass++
			}
		}
		got, err := Aggregate(percentages(pcts...))
		if err != nil {
			t.Fatalf("Aggregate: %v", err)
		}
		if got.Lowest > got.Average || got.Average > got.Highest {
			t.Fatalf("ordering violated for %v: %+v", pcts, got)
		}
		for _, v := range []float64{got.Lowest, got.Average, got.Highest, got.PassingRate} {
			if v < 0 || v > 100 {
				t.Fatalf("value %v out of range for %v", v, pcts)
			}
		}
		if want := Round1(100 * float64(pass) / float64(n)); got.PassingRate != want {
			t.Fatalf("PassingRate = %v, want %v", got.PassingRate, want)
		}
	}
}

func TestAggregatePassBoundary(t *testing.T) {
	got, err := Aggregate(percentages(50, 49.99))
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if got.PassingRate != 50 {
		t.Errorf("PassingRate = %v, want 50", got.PassingRate)
	}
}

func TestRound1(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{66.666, 66.7},
		{33.333, 33.3},
		{12.25, 12.3},
		{-12.25, -12.3},
		{0.04, 0},
		{100, 100},
	}
	for _, tt := range tests {
		if got := Round1(tt.in); got != tt.want {
			t.Errorf("Round1(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
