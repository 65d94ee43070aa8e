// Package names generates Docker-style run identifiers such as
// "focused_turing", used to name builder run logs.
package names

import (
	"fmt"

	"github.com/docker/docker/pkg/namesgenerator"
)

// DefaultAttempts is how many candidates GenerateUnique tries by default.
const DefaultAttempts = 100

// ExistsFn checks if a name is already taken.
type ExistsFn func(name string) bool

// Generate returns a random adjective_surname name.
func Generate() string {
	return namesgenerator.GetRandomName(0)
}

// GenerateUnique returns a name for which existsFn reports false.
// After the first few collisions candidates gain a numeric suffix
// ("focused_turing3"), widening the space. Returns an error after
// maxAttempts candidates (DefaultAttempts when <= 0).
func GenerateUnique(existsFn ExistsFn, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultAttempts
	}

	for attempt := range maxAttempts {
		// GetRandomName appends a digit when its retry argument is positive.
		name := namesgenerator.GetRandomName(attempt / 10)
		if !existsFn(name) {
			return name, nil
		}
	}

	return "", fmt.Errorf("failed to generate unique run name after %d attempts", maxAttempts)
}
