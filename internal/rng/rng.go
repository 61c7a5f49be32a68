// Package rng supplies the uniform draws every game outcome is derived from.
//
// Live wagers use Crypto. Seeded is deterministic and exists for offline
// simulation and replay of recorded rounds; it must never back a live wager.
package rng

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20"
)

// Provider returns n independent values uniformly distributed in [0, 1).
type Provider interface {
	Draw(n int) ([]float64, error)
}

const mantissa = 1 << 53

// toUnit maps 64 random bits to [0, 1) using the top 53 bits.
func toUnit(b []byte) float64 {
	return float64(binary.BigEndian.Uint64(b)>>11) / mantissa
}

func drawFrom(r io.Reader, n int) ([]float64, error) {
	if n <= 0 {
		return []float64{}, nil
	}
	buf := make([]byte, 8*n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("reading entropy: %w", err)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = toUnit(buf[i*8 : i*8+8])
	}
	return out, nil
}

// Crypto draws from the operating system CSPRNG.
type Crypto struct {
	src io.Reader
}

// NewCrypto returns a provider backed by crypto/rand.
func NewCrypto() *Crypto {
	return &Crypto{src: rand.Reader}
}

// Draw never substitutes a weaker source when entropy is unavailable.
func (c *Crypto) Draw(n int) ([]float64, error) {
	return drawFrom(c.src, n)
}

// Seeded is a ChaCha20 keystream provider. Same seed, same draws.
type Seeded struct {
	mu     sync.Mutex
	cipher *chacha20.Cipher
}

// NewSeeded builds a deterministic provider from a 32-byte seed.
func NewSeeded(seed [32]byte) (*Seeded, error) {
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(seed[:], nonce[:])
	if err != nil {
		return nil, fmt.Errorf("init chacha20: %w", err)
	}
	return &Seeded{cipher: c}, nil
}

func (s *Seeded) Draw(n int) ([]float64, error) {
	if n <= 0 {
		return []float64{}, nil
	}
	buf := make([]byte, 8*n)
	s.mu.Lock()
	s.cipher.XORKeyStream(buf, buf)
	s.mu.Unlock()
	out := make([]float64, n)
	for i := range out {
		out[i] = toUnit(buf[i*8 : i*8+8])
	}
	return out, nil
}

// Sequence replays a fixed list of draws. Running out is an error.
type Sequence struct {
	mu    sync.Mutex
	draws []float64
}

// NewSequence returns a provider that yields draws in order.
func NewSequence(draws ...float64) *Sequence {
	return &Sequence{draws: draws}
}

func (s *Sequence) Draw(n int) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		return []float64{}, nil
	}
	if n > len(s.draws) {
		return nil, fmt.Errorf("sequence exhausted: need %d, have %d", n, len(s.draws))
	}
	out := make([]float64, n)
	copy(out, s.draws[:n])
	s.draws = s.draws[n:]
	return out, nil
}

// IntN maps a draw u in [0,1) onto [0, n).
func IntN(u float64, n int) int {
	if n <= 0 {
		return 0
	}
	i := int(u * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Pick selects an index from weights with probability proportional to weight.
func Pick(u float64, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	target := u * total
	var acc float64
	for i, w := range weights {
		acc += w
		if target < acc {
			return i
		}
	}
	// floating point slack: fall back to the last positive weight
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return 0
}

// Shuffle performs a Fisher-Yates shuffle of n elements using n-1 draws.
func Shuffle(n int, draws []float64, swap func(i, j int)) error {
	if n < 2 {
		return nil
	}
	if len(draws) < n-1 {
		return fmt.Errorf("shuffle needs %d draws, got %d", n-1, len(draws))
	}
	for i := n - 1; i > 0; i-- {
		j := IntN(draws[n-1-i], i+1)
		swap(i, j)
	}
	return nil
}
