package game

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

// RandomSource yields uniform floats in [0, 1).
type RandomSource interface {
	Float64() float64
}

// RandomFunc adapts a plain function to RandomSource.
type RandomFunc func() float64

func (f RandomFunc) Float64() float64 { return f() }

type cryptoSource struct {
	r io.Reader
}

// NewCryptoSource returns a RandomSource backed by crypto/rand (CSPRNG).
func NewCryptoSource() RandomSource {
	return cryptoSource{r: rand.Reader}
}

// Float64 panics when the entropy source fails. Falling back to any fixed
// value would deal the same card every time.
func (c cryptoSource) Float64() float64 {
	var b [8]byte
	if _, err := io.ReadFull(c.r, b[:]); err != nil {
		panic(fmt.Sprintf("game: read random bytes: %v", err))
	}
	// 53 random bits -> [0, 1)
	return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53)
}
