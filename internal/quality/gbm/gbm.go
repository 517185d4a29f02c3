// Package gbm implements multi-class gradient boosting over depth-limited
// regression trees with a softmax link.
//
// Each round fits one tree per class to the negative gradient of the
// multinomial deviance and sets leaf values with a single Newton step.
package gbm

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Params controls ensemble growth.
type Params struct {
	Rounds         int     `mapstructure:"rounds" json:"rounds"`
	LearningRate   float64 `mapstructure:"learning_rate" json:"learning_rate"`
	MaxDepth       int     `mapstructure:"max_depth" json:"max_depth"`
	MinSamplesLeaf int     `mapstructure:"min_samples_leaf" json:"min_samples_leaf"`
}

// DefaultParams mirrors the usual gradient boosting defaults: 100 rounds,
// shrinkage 0.1, depth 3.
func DefaultParams() Params {
	return Params{
		Rounds:         100,
		LearningRate:   0.1,
		MaxDepth:       3,
		MinSamplesLeaf: 1,
	}
}

func (p Params) validate() error {
	switch {
	case p.Rounds < 1:
		return errors.New("rounds must be at least 1")
	case p.LearningRate <= 0 || p.LearningRate > 1:
		return errors.New("learning rate must be within (0, 1]")
	case p.MaxDepth < 1:
		return errors.New("max depth must be at least 1")
	case p.MinSamplesLeaf < 1:
		return errors.New("min samples per leaf must be at least 1")
	}
	return nil
}

// Node is one tree node. Leaves carry Value; inner nodes route samples with
// x[Feature] <= Threshold to Left.
type Node struct {
	Feature   int     `json:"f,omitempty"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v,omitempty"`
	Leaf      bool    `json:"leaf,omitempty"`
}

// Tree is a regression tree stored as a flat node slice rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict returns the leaf value for x.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Ensemble is a trained boosted classifier.
type Ensemble struct {
	Classes      int       `json:"classes"`
	Features     int       `json:"features"`
	LearningRate float64   `json:"learning_rate"`
	Prior        []float64 `json:"prior"`
	Rounds       [][]Tree  `json:"rounds"` // [round][class]
}

// Fit trains an ensemble on rows x with integer labels y in [0, classes).
func Fit(x [][]float64, y []int, classes int, p Params) (*Ensemble, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	n := len(x)
	if n == 0 {
		return nil, errors.New("no training rows")
	}
	if len(y) != n {
		return nil, fmt.Errorf("%d rows but %d labels", n, len(y))
	}
	if classes < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", classes)
	}
	features := len(x[0])
	counts := make([]float64, classes)
	for i := range x {
		if len(x[i]) != features {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(x[i]), features)
		}
		if y[i] < 0 || y[i] >= classes {
			return nil, fmt.Errorf("row %d label %d out of range", i, y[i])
		}
		counts[y[i]]++
	}

	e := &Ensemble{
		Classes:      classes,
		Features:     features,
		LearningRate: p.LearningRate,
		Prior:        make([]float64, classes),
	}
	for k, c := range counts {
		e.Prior[k] = math.Log(math.Max(c, 1e-9) / float64(n))
	}

	scores := make([][]float64, n)
	for i := range scores {
		scores[i] = append([]float64(nil), e.Prior...)
	}

	b := &builder{x: x, params: p, classes: classes, residual: make([]float64, n)}
	prob := make([]float64, classes)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	for round := 0; round < p.Rounds; round++ {
		// Gradients for every class come from the scores at the start of
		// the round.
		probs := make([][]float64, n)
		for i := range scores {
			softmax(prob, scores[i])
			probs[i] = append([]float64(nil), prob...)
		}

		trees := make([]Tree, classes)
		for k := 0; k < classes; k++ {
			for i := 0; i < n; i++ {
				target := 0.0
				if y[i] == k {
					target = 1
				}
				b.residual[i] = target - probs[i][k]
			}
			b.nodes = nil
			b.grow(append([]int(nil), all...), 0)
			trees[k] = Tree{Nodes: b.nodes}
		}
		for i := range scores {
			for k := range trees {
				scores[i][k] += p.LearningRate * trees[k].Predict(x[i])
			}
		}
		e.Rounds = append(e.Rounds, trees)
	}
	return e, nil
}

// Scores returns the raw additive score per class.
func (e *Ensemble) Scores(x []float64) []float64 {
	s := append([]float64(nil), e.Prior...)
	for _, trees := range e.Rounds {
		for k := range trees {
			s[k] += e.LearningRate * trees[k].Predict(x)
		}
	}
	return s
}

// Proba returns class probabilities.
func (e *Ensemble) Proba(x []float64) []float64 {
	out := make([]float64, e.Classes)
	softmax(out, e.Scores(x))
	return out
}

// Predict returns the most probable class. Ties go to the lower index.
func (e *Ensemble) Predict(x []float64) int {
	s := e.Scores(x)
	best := 0
	for k := 1; k < len(s); k++ {
		if s[k] > s[best] {
			best = k
		}
	}
	return best
}

// Validate checks structural consistency of a decoded ensemble.
func (e *Ensemble) Validate() error {
	if e.Classes < 2 || len(e.Prior) != e.Classes {
		return errors.New("class count does not match prior")
	}
	if e.Features < 1 {
		return errors.New("ensemble has no features")
	}
	for r, trees := range e.Rounds {
		if len(trees) != e.Classes {
			return fmt.Errorf("round %d has %d trees, want %d", r, len(trees), e.Classes)
		}
		for k, t := range trees {
			if err := t.validate(e.Features); err != nil {
				return fmt.Errorf("round %d class %d: %w", r, k, err)
			}
		}
	}
	return nil
}

func (t *Tree) validate(features int) error {
	if len(t.Nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= features {
			return fmt.Errorf("node %d splits on feature %d", i, n.Feature)
		}
		// Children always follow their parent, which also rules out cycles.
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children", i)
		}
	}
	return nil
}

type builder struct {
	x        [][]float64
	params   Params
	classes  int
	residual []float64
	nodes    []Node
}

// grow appends the subtree for idx and returns its root index.
func (b *builder) grow(idx []int, depth int) int {
	at := len(b.nodes)
	b.nodes = append(b.nodes, Node{})

	if depth >= b.params.MaxDepth || len(idx) < 2*b.params.MinSamplesLeaf {
		b.nodes[at] = Node{Leaf: true, Value: b.leafValue(idx)}
		return at
	}
	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		b.nodes[at] = Node{Leaf: true, Value: b.leafValue(idx)}
		return at
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[at] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return at
}

// bestSplit finds the split with the largest reduction in squared error of
// the residuals.
func (b *builder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	minLeaf := b.params.MinSamplesLeaf
	var total float64
	for _, i := range idx {
		total += b.residual[i]
	}
	base := total * total / float64(n)

	bestGain := 1e-12
	bestFeature, bestThreshold := -1, 0.0
	sorted := make([]int, n)
	features := len(b.x[idx[0]])
	for f := 0; f < features; f++ {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool {
			va, vc := b.x[sorted[a]][f], b.x[sorted[c]][f]
			if va != vc {
				return va < vc
			}
			return sorted[a] < sorted[c]
		})

		var left float64
		for pos := 0; pos < n-1; pos++ {
			left += b.residual[sorted[pos]]
			nl := pos + 1
			nr := n - nl
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			cur, next := b.x[sorted[pos]][f], b.x[sorted[pos+1]][f]
			if cur == next {
				continue
			}
			right := total - left
			gain := left*left/float64(nl) + right*right/float64(nr) - base
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

// leafValue is the one-step Newton estimate for the multinomial deviance.
func (b *builder) leafValue(idx []int) float64 {
	var num, den float64
	for _, i := range idx {
		r := b.residual[i]
		num += r
		a := math.Abs(r)
		den += a * (1 - a)
	}
	if den < 1e-150 {
		return 0
	}
	k := float64(b.classes)
	return (k - 1) / k * num / den
}

func softmax(dst, scores []float64) {
	maxScore := math.Inf(-1)
	for _, s := range scores {
		maxScore = math.Max(maxScore, s)
	}
	var sum float64
	for k, s := range scores {
		dst[k] = math.Exp(s - maxScore)
		sum += dst[k]
	}
	for k := range dst {
		dst[k] /= sum
	}
}
