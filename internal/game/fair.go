package game

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// SeededSource is a reproducible RandomSource: draw n is the first 53 bits
// of HMAC-SHA256(serverSeed, "clientSeed:nonce:n"). The same seeds always deal
// the same boards.
type SeededSource struct {
	serverSeed string
	clientSeed string
	nonce      int
	draws      uint64
}

func NewSeededSource(serverSeed, clientSeed string, nonce int) *SeededSource {
	return &SeededSource{serverSeed: serverSeed, clientSeed: clientSeed, nonce: nonce}
}

func (s *SeededSource) Float64() float64 {
	h := hmac.New(sha256.New, []byte(s.serverSeed))
	fmt.Fprintf(h, "%s:%d:%d", s.clientSeed, s.nonce, s.draws)
	s.draws++
	sum := h.Sum(nil)
	return float64(binary.BigEndian.Uint64(sum[:8])>>11) / (1 << 53)
}
