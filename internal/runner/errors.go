package runner

import "fmt"

// SpawnError is returned when the atlas builder could not be started, for
// example because the binary is missing or not executable.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("start atlas builder %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExitError is returned when the atlas builder ran and reported failure.
// It carries everything the process printed so failures can be diagnosed
// without running it again.
type ExitError struct {
	// ExitCode is the process exit code, or -1 when a signal ended it.
	ExitCode int
	// Signal describes the terminating signal ("signal: killed"), if any.
	Signal string
	Stdout string
	Stderr string
}

// Error embeds stderr and stdout verbatim so multi-line diagnostics survive.
func (e *ExitError) Error() string {
	if e.Signal != "" {
		return fmt.Sprintf("texture generation terminated by %s. Error \"%s\" stdout \"%s\"", e.Signal, e.Stderr, e.Stdout)
	}
	return fmt.Sprintf("texture generation failed with exit code %d. Error \"%s\" stdout \"%s\"", e.ExitCode, e.Stderr, e.Stdout)
}
