package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// runRoot executes the root command with args and stdin, returning what it
// wrote to stdout and stderr.
func runRoot(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	rootCmd := newRootCommand()

	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// stubTerminal makes every stream look like a terminal (or not) and
// answers confirmation prompts with answer.
func stubTerminal(t *testing.T, tty bool, answer bool) *[]string {
	t.Helper()
	origTerminal, origPrompt := isTerminal, promptConfirm
	t.Cleanup(func() {
		isTerminal, promptConfirm = origTerminal, origPrompt
	})

	var questions []string
	isTerminal = func(any) bool { return tty }
	promptConfirm = func(_ io.Reader, _ io.Writer, question string) bool {
		questions = append(questions, question)
		return answer
	}
	return &questions
}

// inTempDir switches to a fresh directory so no .azchain.yaml from the
// repository is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
