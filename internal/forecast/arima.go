package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// arima111 is an ARIMA(1,1,1) fitted to a daily series by conditional least
// squares: a long autoregression estimates the innovations, then the ARMA
// coefficients come from one more regression on lagged value and lagged
// innovation (Hannan-Rissanen). Enough for short demand series; anything the
// procedure cannot fit cleanly is reported as an error and the engine falls
// back to naive persistence.
type arima111 struct {
	c, phi, theta float64
	sigma2        float64

	lastY float64 // last observed level
	lastW float64 // last first difference
	lastE float64 // last innovation estimate
}

const longAROrder = 3

func fitARIMA111(y []float64) (*arima111, error) {
	if len(y) < longAROrder+4 {
		return nil, fmt.Errorf("series too short: %d points", len(y))
	}

	// d=1: work on first differences.
	w := make([]float64, len(y)-1)
	for i := range w {
		w[i] = y[i+1] - y[i]
	}
	if stat.Variance(w, nil) == 0 {
		return nil, fmt.Errorf("degenerate series: constant differences")
	}

	// Step 1: long AR to estimate innovations.
	p := longAROrder
	rows := len(w) - p
	X := mat.NewDense(rows, p+1, nil)
	b := make([]float64, rows)
	for t := p; t < len(w); t++ {
		r := t - p
		X.Set(r, 0, 1)
		for j := 1; j <= p; j++ {
			X.Set(r, j, w[t-j])
		}
		b[r] = w[t]
	}
	arCoef, err := olsSolve(X, b)
	if err != nil {
		return nil, fmt.Errorf("long AR fit: %w", err)
	}
	e := make([]float64, len(w)) // zeros before index p
	for t := p; t < len(w); t++ {
		pred := arCoef[0]
		for j := 1; j <= p; j++ {
			pred += arCoef[j] * w[t-j]
		}
		e[t] = w[t] - pred
	}

	// Step 2: w[t] ~ c + phi*w[t-1] + theta*e[t-1].
	rows = len(w) - p - 1
	if rows < 3 {
		return nil, fmt.Errorf("not enough points for ARMA step")
	}
	X2 := mat.NewDense(rows, 3, nil)
	b2 := make([]float64, rows)
	for t := p + 1; t < len(w); t++ {
		r := t - p - 1
		X2.Set(r, 0, 1)
		X2.Set(r, 1, w[t-1])
		X2.Set(r, 2, e[t-1])
		b2[r] = w[t]
	}
	coef, err := olsSolve(X2, b2)
	if err != nil {
		return nil, fmt.Errorf("ARMA fit: %w", err)
	}
	c, phi, theta := coef[0], coef[1], coef[2]
	if !finiteAll(c, phi, theta) {
		return nil, fmt.Errorf("non-finite coefficients")
	}
	if math.Abs(phi) >= 1 {
		return nil, fmt.Errorf("non-stationary AR coefficient %.4f", phi)
	}

	var rss float64
	for t := p + 1; t < len(w); t++ {
		resid := w[t] - (c + phi*w[t-1] + theta*e[t-1])
		rss += resid * resid
	}
	sigma2 := rss / float64(rows)

	return &arima111{
		c: c, phi: phi, theta: theta,
		sigma2: sigma2,
		lastY:  y[len(y)-1],
		lastW:  w[len(w)-1],
		lastE:  e[len(e)-1],
	}, nil
}

// forecast returns point predictions and the standard error per horizon step.
func (m *arima111) forecast(steps int) (mean []float64, se []float64) {
	mean = make([]float64, steps)
	se = make([]float64, steps)

	// Differenced forecasts: the innovation only feeds the first step.
	wf := m.c + m.phi*m.lastW + m.theta*m.lastE
	level := m.lastY
	for h := 0; h < steps; h++ {
		if h > 0 {
			wf = m.c + m.phi*wf
		}
		level += wf
		mean[h] = level
	}

	// ψ weights of the ARMA(1,1), accumulated for the integrated process.
	psiSum := 1.0 // Ψ_0
	varAcc := psiSum * psiSum
	psi := 0.0
	for h := 0; h < steps; h++ {
		se[h] = math.Sqrt(m.sigma2 * varAcc)
		if h == 0 {
			psi = m.phi + m.theta
		} else {
			psi *= m.phi
		}
		psiSum += psi
		varAcc += psiSum * psiSum
	}
	return mean, se
}

func olsSolve(X *mat.Dense, y []float64) ([]float64, error) {
	var qr mat.QR
	qr.Factorize(X)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, mat.NewVecDense(len(y), y)); err != nil {
		return nil, err
	}
	out := make([]float64, beta.Len())
	for i := range out {
		out[i] = beta.AtVec(i)
	}
	return out, nil
}

func finiteAll(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
