package gbm

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

// bands labels points by which third of [0, 30) their first feature falls
// in. The second feature is noise.
func bands() ([][]float64, []int) {
	var x [][]float64
	var y []int
	for i := 0; i < 30; i++ {
		x = append(x, []float64{float64(i), float64((i * 7) % 11)})
		y = append(y, i/10)
	}
	return x, y
}

func TestFit_SeparatesBands(t *testing.T) {
	t.Parallel()

	x, y := bands()
	p := DefaultParams()
	p.Rounds = 30
	e, err := Fit(x, y, 3, p)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	for i := range x {
		if got := e.Predict(x[i]); got != y[i] {
			t.Errorf("Predict(%v) = %d, want %d", x[i], got, y[i])
		}
	}
	if got := e.Predict([]float64{25, 0}); got != 2 {
		t.Errorf("Predict(unseen 25) = %d, want 2", got)
	}
}

func TestProba_SumsToOne(t *testing.T) {
	t.Parallel()

	x, y := bands()
	e, err := Fit(x, y, 3, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range x {
		var sum float64
		for _, p := range e.Proba(row) {
			if p < 0 || p > 1 {
				t.Fatalf("probability %v out of range", p)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("probabilities sum to %v", sum)
		}
	}
}

func TestFit_Deterministic(t *testing.T) {
	t.Parallel()

	x, y := bands()
	a, err := Fit(x, y, 3, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Fit(x, y, 3, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("identical inputs produced different ensembles")
	}
}

func TestEnsemble_JSONRoundTripPredicts(t *testing.T) {
	t.Parallel()

	x, y := bands()
	e, err := Fit(x, y, 3, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var back Ensemble
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if err := back.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, row := range x {
		if e.Predict(row) != back.Predict(row) {
			t.Fatalf("decoded ensemble disagrees on %v", row)
		}
	}
}

func TestFit_Errors(t *testing.T) {
	t.Parallel()

	x, y := bands()
	tests := []struct {
		name    string
		x       [][]float64
		y       []int
		classes int
		params  Params
	}{
		{name: "no rows", x: nil, y: nil, classes: 3, params: DefaultParams()},
		{name: "label count", x: x, y: y[:3], classes: 3, params: DefaultParams()},
		{name: "one class", x: x, y: y, classes: 1, params: DefaultParams()},
		{name: "label out of range", x: x, y: y, classes: 2, params: DefaultParams()},
		{name: "zero rounds", x: x, y: y, classes: 3, params: Params{LearningRate: 0.1, MaxDepth: 3, MinSamplesLeaf: 1}},
		{name: "ragged", x: [][]float64{{1, 2}, {1}}, y: []int{0, 1}, classes: 2, params: DefaultParams()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Fit(tt.x, tt.y, tt.classes, tt.params); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidate_RejectsBadTrees(t *testing.T) {
	t.Parallel()

	e := &Ensemble{
		Classes:  2,
		Features: 1,
		Prior:    []float64{0, 0},
		Rounds: [][]Tree{{
			{Nodes: []Node{{Feature: 0, Left: 0, Right: 1}, {Leaf: true}}},
			{Nodes: []Node{{Leaf: true}}},
		}},
	}
	if err := e.Validate(); err == nil {
		t.Error("self-referencing node should fail validation")
	}
}
