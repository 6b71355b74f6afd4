package shoe

import (
	"crypto/rand"
	"math/big"
	mathrand "math/rand"

	"github.com/edgecount/blackjack-engine/internal/domain"
)

// Shuffler randomises a card slice in place. Two implementations exist: a
// production crypto/rand shuffler and a seeded math/rand shuffler for
// reproducible replay (spec §5, "Determinism and RNG").
type Shuffler interface {
	Shuffle(cards []domain.Card)
}

// CryptoShuffler shuffles with crypto/rand, the production default. It holds
// no state and is safe to share across sessions.
type CryptoShuffler struct{}

func NewCryptoShuffler() CryptoShuffler { return CryptoShuffler{} }

func (CryptoShuffler) Shuffle(cards []domain.Card) {
	for i := len(cards) - 1; i > 0; i-- {
		j := cryptoIntn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// cryptoIntn returns a uniform random int in [0, n) using crypto/rand. A
// failure to read entropy is a programmer-bug-grade condition, not a
// recoverable one, so it panics rather than silently biasing the shuffle.
func cryptoIntn(n int) int {
	max := big.NewInt(int64(n))
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		panic("shoe: crypto/rand unavailable: " + err.Error())
	}
	return int(v.Int64())
}

// SeededShuffler shuffles with a caller-supplied math/rand seed so a session
// can be replayed deterministically from its seed and operation log.
type SeededShuffler struct {
	rng *mathrand.Rand
}

func NewSeededShuffler(seed int64) *SeededShuffler {
	return &SeededShuffler{rng: mathrand.New(mathrand.NewSource(seed))}
}

func (s *SeededShuffler) Shuffle(cards []domain.Card) {
	s.rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}
