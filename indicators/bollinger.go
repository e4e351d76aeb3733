package indicators

import (
	"fmt"
	"math"

	"github.com/alpaquero/alpaquero/market"
)

// BollingerFunc calculates Bollinger Bands over the trailing window,
// returning upper, middle and lower band values.
// Returns an error if there aren't enough bars for the window.
func BollingerFunc(bars []market.Bar, window int, numStd float64) (upper, middle, lower float64, err error) {
	if window <= 0 {
		return 0, 0, 0, fmt.Errorf("window must be positive, got %d", window)
	}
	if len(bars) < window {
		return 0, 0, 0, fmt.Errorf("not enough bars: need %d, got %d: %w",
			window, len(bars), ErrInsufficientData)
	}

	var sum, sumSq float64
	for i := len(bars) - window; i < len(bars); i++ {
		c := bars[i].Close
		sum += c
		sumSq += c * c
	}
	mean := sum / float64(window)
	sd := stdDevFrom(sum, sumSq, window)

	return mean + numStd*sd, mean, mean - numStd*sd, nil
}

// Bollinger is a streaming Bollinger Bands indicator. Value() returns
// the middle band (the SMA); Bands() exposes all three.
//
// The standard deviation is the population form over the window, kept
// as rolling sum and sum of squares so each update is O(1).
type Bollinger struct {
	window int
	numStd float64
	closes []float64
	sum    float64
	sumSq  float64
}

// NewBollinger creates a new Bollinger Bands indicator with the given
// window and band width in standard deviations
func NewBollinger(window int, numStd float64) *Bollinger {
	return &Bollinger{
		window: window,
		numStd: numStd,
		closes: make([]float64, 0, window),
	}
}

func (b *Bollinger) Name() string {
	return fmt.Sprintf("BB(%d,%g)", b.window, b.numStd)
}

func (b *Bollinger) Warmup() int {
	return b.window
}

func (b *Bollinger) Reset() {
	b.closes = b.closes[:0]
	b.sum = 0
	b.sumSq = 0
}

func (b *Bollinger) Update(bar market.Bar) {
	c := bar.Close
	b.closes = append(b.closes, c)
	b.sum += c
	b.sumSq += c * c
	// Keep only the last 'window' closes
	if len(b.closes) > b.window {
		h := b.closes[0]
		b.sum -= h
		b.sumSq -= h * h
		b.closes = b.closes[1:]
	}
}

func (b *Bollinger) Ready() bool {
	return len(b.closes) >= b.window
}

// Value returns the middle band.
func (b *Bollinger) Value() float64 {
	if !b.Ready() {
		return 0
	}
	return b.sum / float64(len(b.closes))
}

// StdDev returns the population standard deviation over the window.
func (b *Bollinger) StdDev() float64 {
	if !b.Ready() {
		return 0
	}
	return stdDevFrom(b.sum, b.sumSq, len(b.closes))
}

// Bands returns the upper, middle and lower band values, all 0 until Ready().
func (b *Bollinger) Bands() (upper, middle, lower float64) {
	if !b.Ready() {
		return 0, 0, 0
	}
	mean := b.sum / float64(len(b.closes))
	sd := stdDevFrom(b.sum, b.sumSq, len(b.closes))
	return mean + b.numStd*sd, mean, mean - b.numStd*sd
}

func stdDevFrom(sum, sumSq float64, n int) float64 {
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	// Rolling subtraction can leave a tiny negative residue on flat data
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}
