package analysis

import (
	"math"
	"sort"
)

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// stdDev is the sample standard deviation (n-1 denominator), chosen because
// the stored history is a sample of the benchmark's behaviour, not the full
// population of possible runs.
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// linearFit is an ordinary least squares fit of y against the sample index
// 0..n-1. PValue is the two-sided significance of the slope being non-zero,
// from a t-test with n-2 degrees of freedom.
type linearFit struct {
	Slope     float64
	Intercept float64
	RSquared  float64
	PValue    float64
}

func fitLinear(values []float64) linearFit {
	n := float64(len(values))
	if n < 2 {
		return linearFit{PValue: 1}
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	denominator := n*sumX2 - sumX*sumX
	if denominator == 0 {
		return linearFit{PValue: 1}
	}

	slope := (n*sumXY - sumX*sumY) / denominator
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssRes, ssTot float64
	for i, y := range values {
		predicted := slope*float64(i) + intercept
		ssRes += (y - predicted) * (y - predicted)
		ssTot += (y - meanY) * (y - meanY)
	}

	rSquared := 1.0
	if ssTot > 0 {
		rSquared = 1 - ssRes/ssTot
	}

	fit := linearFit{
		Slope:     slope,
		Intercept: intercept,
		RSquared:  rSquared,
		PValue:    1,
	}

	df := n - 2
	if df < 1 {
		return fit
	}

	// Standard error of the slope. Sxx is the x sum of squares around its
	// mean, which for the index 0..n-1 equals denominator/n.
	sxx := denominator / n
	if ssRes <= 0 || sxx <= 0 {
		// Perfect fit: the slope is exactly determined.
		if slope != 0 {
			fit.PValue = 0
		}
		return fit
	}

	se := math.Sqrt(ssRes / df / sxx)
	if se == 0 {
		if slope != 0 {
			fit.PValue = 0
		}
		return fit
	}

	t := slope / se
	fit.PValue = studentTPValue(t, df)
	return fit
}

// studentTPValue is the two-sided p-value of a t statistic with df degrees of
// freedom, P(|T| >= |t|) = I_x(df/2, 1/2) with x = df/(df+t^2).
func studentTPValue(t, df float64) float64 {
	x := df / (df + t*t)
	return regularizedIncompleteBeta(df/2, 0.5, x)
}

// regularizedIncompleteBeta evaluates I_x(a, b) with the continued fraction
// expansion from Numerical Recipes.
func regularizedIncompleteBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	lga, _ := math.Lgamma(a)
	lgb, _ := math.Lgamma(b)
	lgab, _ := math.Lgamma(a + b)
	front := math.Exp(lgab - lga - lgb + a*math.Log(x) + b*math.Log(1-x))

	if x < (a+1)/(a+b+2) {
		return front * betaContinuedFraction(a, b, x) / a
	}
	return 1 - front*betaContinuedFraction(b, a, 1-x)/b
}

func betaContinuedFraction(a, b, x float64) float64 {
	const (
		maxIterations = 200
		epsilon       = 3e-14
		fpMin         = 1e-300
	)

	qab := a + b
	qap := a + 1
	qam := a - 1

	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < fpMin {
		d = fpMin
	}
	d = 1 / d
	h := d

	for m := 1; m <= maxIterations; m++ {
		fm := float64(m)
		m2 := 2 * fm

		aa := fm * (b - fm) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < fpMin {
			d = fpMin
		}
		c = 1 + aa/c
		if math.Abs(c) < fpMin {
			c = fpMin
		}
		d = 1 / d
		h *= d * c

		aa = -(a + fm) * (qab + fm) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < fpMin {
			d = fpMin
		}
		c = 1 + aa/c
		if math.Abs(c) < fpMin {
			c = fpMin
		}
		d = 1 / d
		del := d * c
		h *= del

		if math.Abs(del-1) < epsilon {
			break
		}
	}
	return h
}
