package bayes

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNotFitted is returned by Predict before the first successful Fit.
var ErrNotFitted = errors.New("gaussian process not fitted")

// Kernel holds the hyperparameters of the periodic squared-exponential
// kernel k(a, b) = s² · exp(-2 Σ sin²((a_i - b_i)/2) / ℓ²).
type Kernel struct {
	LengthScale    float64 `yaml:"length_scale"`
	SignalVariance float64 `yaml:"signal_variance"`
	NoiseVariance  float64 `yaml:"noise_variance"`
}

// Eval returns k(a, b). Panics if a and b differ in length.
func (k Kernel) Eval(a, b []float64) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("kernel: dimension mismatch %d != %d", len(a), len(b)))
	}
	var sum float64
	for i := range a {
		s := math.Sin((a[i] - b[i]) / 2)
		sum += s * s
	}
	return k.SignalVariance * math.Exp(-2*sum/(k.LengthScale*k.LengthScale))
}

// maxJitterTries bounds how often Fit retries a failed factorization with
// a larger diagonal.
const maxJitterTries = 6

// GaussianProcess is an exact GP regressor over a fixed training set.
// Targets are centred on their mean before fitting.
//
// Thread-safety: NOT thread-safe.
type GaussianProcess struct {
	kernel Kernel
	x      [][]float64
	yMean  float64
	chol   mat.Cholesky
	alpha  *mat.VecDense
	fitted bool
}

// NewGaussianProcess returns an unfitted GP.
func NewGaussianProcess(k Kernel) *GaussianProcess {
	return &GaussianProcess{kernel: k}
}

// Len returns the number of training points of the last fit.
func (gp *GaussianProcess) Len() int { return len(gp.x) }

// Fit factorizes the kernel matrix of x and solves for the weights of y.
// When the matrix is not positive definite the diagonal is inflated and
// the factorization retried.
func (gp *GaussianProcess) Fit(x [][]float64, y []float64) error {
	n := len(x)
	if n == 0 {
		return fmt.Errorf("fit: no training points")
	}
	if len(y) != n {
		return fmt.Errorf("fit: %d points but %d values", n, len(y))
	}
	yMean := floats.Sum(y) / float64(n)
	centred := make([]float64, n)
	for i, v := range y {
		centred[i] = v - yMean
	}

	jitter := gp.kernel.NoiseVariance
	if jitter <= 0 {
		jitter = 1e-10
	}
	var chol mat.Cholesky
	ok := false
	for try := 0; try < maxJitterTries && !ok; try++ {
		k := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				v := gp.kernel.Eval(x[i], x[j])
				if i == j {
					v += jitter
				}
				k.SetSym(i, j, v)
			}
		}
		ok = chol.Factorize(k)
		jitter *= 10
	}
	if !ok {
		return fmt.Errorf("fit: kernel matrix of %d points is not positive definite", n)
	}

	alpha := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(alpha, mat.NewVecDense(n, centred)); err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	gp.x = x
	gp.yMean = yMean
	gp.chol = chol
	gp.alpha = alpha
	gp.fitted = true
	return nil
}

// Predict returns the posterior mean and variance at p.
func (gp *GaussianProcess) Predict(p []float64) (mean, variance float64, err error) {
	if !gp.fitted {
		return 0, 0, ErrNotFitted
	}
	n := len(gp.x)
	ks := mat.NewVecDense(n, nil)
	for i, xi := range gp.x {
		ks.SetVec(i, gp.kernel.Eval(p, xi))
	}
	mean = gp.yMean + mat.Dot(ks, gp.alpha)

	w := mat.NewVecDense(n, nil)
	if err := gp.chol.SolveVecTo(w, ks); err != nil {
		return 0, 0, fmt.Errorf("predict: %w", err)
	}
	variance = gp.kernel.Eval(p, p) - mat.Dot(ks, w)
	if variance < 0 {
		variance = 0
	}
	return mean, variance, nil
}
