package commandmanager

import (
	"context"
	"io"
	"time"
)

// CommandConfig describes a single invocation of an external program.
type CommandConfig struct {
	Command string
	Args    []string

	// Dir is the working directory; empty means the current one.
	Dir string

	// Env entries are appended to the current process environment.
	Env []string

	Sudo bool

	// Sensitive marks an invocation whose arguments carry credentials;
	// argv is redacted from logs.
	Sensitive bool

	// Stdin, when set, is wired to the child process.
	Stdin io.Reader

	// Stream, when set, receives the child's output as it is produced,
	// in addition to the captured copy in CommandResult.
	Stream io.Writer
}

// CommandResult encapsulates the results from a command execution.
type CommandResult struct {
	Command   string
	STDOUT    string
	STDERR    string
	ExitCode  int
	Duration  time.Duration
	Timestamp time.Time
}

// CommandManager executes external programs on the local system.
type CommandManager interface {
	// Run executes the configured command. On a non-zero exit the result
	// is still populated and the error is non-nil.
	Run(ctx context.Context, config CommandConfig) (CommandResult, error)

	// LookPath reports where a program resolves on PATH, if at all.
	LookPath(file string) (string, error)
}
