package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	cm "github.com/Devops-Bot-Official/infracycle-agent/infracycle/commandmanager"
)

// runSh executes each step with the embedded POSIX shell interpreter, so
// simple steps work even on images that ship no shell at all. Every
// finished step counts separately.
func (jr *jobRun) runSh(ctx context.Context, task ShellTask) error {
	parser := syntax.NewParser()

	for i, step := range task.Steps {
		name := fmt.Sprintf("step %d", i+1)
		jr.log.WithField("step", i+1).Info("Running shell step")

		prog, err := parser.Parse(strings.NewReader(step), name)
		if err != nil {
			return fmt.Errorf("%s: parse: %w", name, err)
		}

		runner, err := interp.New(
			interp.Dir(jr.workspace),
			interp.Env(expand.ListEnviron(os.Environ()...)),
			interp.StdIO(nil, jr.engine.console(), jr.engine.console()),
		)
		if err != nil {
			return fmt.Errorf("%s: interpreter: %w", name, err)
		}

		if err := runner.Run(ctx, prog); err != nil {
			var status interp.ExitStatus
			if errors.As(err, &status) {
				return fmt.Errorf("%s exited with status %d", name, int(status))
			}
			return fmt.Errorf("%s: %w", name, err)
		}
		jr.engine.summary().TaskCompleted()
	}
	return nil
}

// runBash shells out for steps that need bash extensions.
func (jr *jobRun) runBash(ctx context.Context, task ShellTask) error {
	for i, step := range task.Steps {
		jr.log.WithField("step", i+1).Info("Running bash step")

		if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{
			Command: "bash",
			Args:    []string{"-c", step},
			Dir:     jr.workspace,
			Stream:  jr.engine.console(),
		}); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		jr.engine.summary().TaskCompleted()
	}
	return nil
}
