package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/microsoft/azchain/internal/stepchain"
)

// Exit codes for different failure modes
const (
	ExitSuccess    = 0 // Command succeeded
	ExitStepFailed = 1 // A chain step failed
	ExitError      = 2 // Usage, configuration or runtime error
)

// ChainFailureError reports that a chain started but one of its steps
// failed or did not finish in time.
type ChainFailureError struct {
	RunID string
	Step  string
	Err   error
}

func (e *ChainFailureError) Error() string {
	return fmt.Sprintf("chain %s failed at step %q: %v", e.RunID, e.Step, e.Err)
}

func (e *ChainFailureError) Unwrap() error {
	return e.Err
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var stepErr *stepchain.StepError
	var chainErr *ChainFailureError
	if errors.As(err, &stepErr) || errors.As(err, &chainErr) {
		return ExitStepFailed
	}
	return ExitError
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
