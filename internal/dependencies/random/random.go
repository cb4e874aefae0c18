package random

import "math/rand/v2"

// IDAlphabet is the alphabet used for generated identifiers such as game ids
const IDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Random provides random number generation that can be mocked for testing
type Random interface {
	// Intn returns a random int in [0, n)
	Intn(n int) int

	// String generates a random string of the given length from the given alphabet
	String(length int, alphabet string) string
}

// SystemRandom implements Random with the runtime's ChaCha8 generator,
// which is safe for concurrent use
type SystemRandom struct{}

// New creates a new SystemRandom
func New() *SystemRandom {
	return &SystemRandom{}
}

// Intn returns a random int in [0, n), or 0 when n is not positive
func (r *SystemRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return rand.IntN(n)
}

// String generates a random string of the given length from the given alphabet
func (r *SystemRandom) String(length int, alphabet string) string {
	if length <= 0 || len(alphabet) == 0 {
		return ""
	}
	result := make([]byte, length)
	for i := range result {
		result[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(result)
}
