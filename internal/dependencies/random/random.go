package random

import "math/rand/v2"

// Random provides random number generation that can be mocked for testing
type Random interface {
	// Intn returns a random int in [0, n)
	Intn(n int) int
}

// Source draws from the runtime's shared generator, which is safe for
// concurrent use by room workers
type Source struct{}

// New creates a new Source
func New() *Source {
	return &Source{}
}

// Intn returns a uniform int in [0, n), or 0 when n <= 0
func (Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return rand.IntN(n)
}
