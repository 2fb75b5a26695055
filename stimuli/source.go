package stimuli

import (
	"math/rand"

	"github.com/iti/rngstream"
)

// A RandomSource draws the random fields of generated transactions. IntN
// returns a uniform value in [0, n).
type RandomSource interface {
	IntN(n int) int
}

// NewMathSource returns a RandomSource backed by a seeded math/rand
// generator. One math source is typically shared by all masters in a run.
func NewMathSource(seed int64) RandomSource {
	return &mathSource{r: rand.New(rand.NewSource(seed))}
}

type mathSource struct {
	r *rand.Rand
}

func (s *mathSource) IntN(n int) int {
	return s.r.Intn(n)
}

// NewStreamSource returns a RandomSource backed by a named L'Ecuyer RNG
// stream. Streams with distinct names draw from non-overlapping
// subsequences, so every master can own one and the run stays reproducible
// regardless of generation order.
func NewStreamSource(name string) RandomSource {
	return &streamSource{rg: rngstream.New(name)}
}

type streamSource struct {
	rg *rngstream.RngStream
}

func (s *streamSource) IntN(n int) int {
	return s.rg.RandInt(0, n-1)
}

// SetStreamMasterSeed reseeds the rngstream package. It must be called
// before any stream source is created.
func SetStreamMasterSeed(seed uint64) {
	rngstream.SetRngStreamMasterSeed(seed)
}
