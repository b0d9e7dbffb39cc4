// Package problem provides synthetic periodic cost landscapes and the
// cost models that encode points for them. A landscape is a sum of cosine
// terms, each evaluated as its own request with additive shot noise.
package problem

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"os"
	"strconv"

	"github.com/qcoptim/parallel-optim/coord"
	"gopkg.in/yaml.v3"
)

// MetaTerm is the request metadata key carrying the term index.
const MetaTerm = "term"

// Term is weight · cos(frequency · x + phase).
type Term struct {
	Weight    float64   `yaml:"weight"`
	Frequency []float64 `yaml:"frequency"`
	Phase     float64   `yaml:"phase"`
}

// Value evaluates the term at x.
func (t Term) Value(x []float64) float64 {
	var arg float64
	for i, f := range t.Frequency {
		arg += f * x[i]
	}
	return t.Weight * math.Cos(arg+t.Phase)
}

// Landscape is a noisy sum of periodic terms over [0, 2π)^Dim.
//
// Thread-safety: Evaluate is safe for concurrent use.
type Landscape struct {
	Dim   int     `yaml:"dim"`
	Terms []Term  `yaml:"terms"`
	Noise float64 `yaml:"noise"` // standard deviation added to every term evaluation
	Seed  int64   `yaml:"seed"`  // noise for a request is derived from Seed and the request name
}

// Validate checks the dimensions of every term.
func (l *Landscape) Validate() error {
	if l.Dim < 1 {
		return fmt.Errorf("landscape dim must be >= 1, got %d", l.Dim)
	}
	if len(l.Terms) == 0 {
		return fmt.Errorf("landscape has no terms")
	}
	for i, t := range l.Terms {
		if len(t.Frequency) != l.Dim {
			return fmt.Errorf("term %d has %d frequencies, want %d", i, len(t.Frequency), l.Dim)
		}
	}
	if l.Noise < 0 {
		return fmt.Errorf("noise must be non-negative, got %v", l.Noise)
	}
	return nil
}

// LoadLandscape reads a landscape from YAML. Unknown fields are rejected.
func LoadLandscape(path string) (*Landscape, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading landscape: %w", err)
	}
	var l Landscape
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&l); err != nil {
		return nil, fmt.Errorf("parsing landscape: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// RandomLandscape draws nTerms terms with integer frequencies in
// {-2, …, 2} and weights normalised by nTerms.
func RandomLandscape(rng *rand.Rand, dim, nTerms int, noise float64) *Landscape {
	l := &Landscape{Dim: dim, Noise: noise, Seed: rng.Int63()}
	for k := 0; k < nTerms; k++ {
		t := Term{
			Weight:    rng.NormFloat64() / float64(nTerms),
			Frequency: make([]float64, dim),
			Phase:     coord.TwoPi * rng.Float64(),
		}
		for i := range t.Frequency {
			t.Frequency[i] = float64(rng.Intn(5) - 2)
		}
		l.Terms = append(l.Terms, t)
	}
	return l
}

// Exact returns the noiseless landscape value at x.
func (l *Landscape) Exact(x []float64) float64 {
	var sum float64
	for _, t := range l.Terms {
		sum += t.Value(x)
	}
	return sum
}

// Evaluate runs one term request: the term value at req.Params plus noise.
func (l *Landscape) Evaluate(ctx context.Context, req coord.EncodedRequest) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k, err := strconv.Atoi(req.Meta[MetaTerm])
	if err != nil || k < 0 || k >= len(l.Terms) {
		return nil, fmt.Errorf("request %s: bad term %q", req.Name, req.Meta[MetaTerm])
	}
	if len(req.Params) != l.Dim {
		return nil, fmt.Errorf("request %s: %d params, want %d", req.Name, len(req.Params), l.Dim)
	}
	v := l.Terms[k].Value(req.Params)
	if l.Noise > 0 {
		v += l.Noise * l.normal(req.Name)
	}
	return []float64{v}, nil
}

// normal draws the noise of one request from a stream keyed by its name, so
// results do not depend on the order concurrent jobs run in.
func (l *Landscape) normal(name string) float64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return rand.New(rand.NewSource(l.Seed ^ int64(h.Sum64()))).NormFloat64()
}
