package pipeline

import (
	"context"
	"fmt"

	cm "github.com/Devops-Bot-Official/infracycle-agent/infracycle/commandmanager"
)

func (jr *jobRun) runYarn(ctx context.Context) error {
	workspace, err := jr.needWorkspace("yarn")
	if err != nil {
		return err
	}

	for _, args := range [][]string{{"install"}, {"build"}} {
		if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{
			Command: "yarn",
			Args:    args,
			Dir:     workspace,
			Stream:  jr.engine.console(),
		}); err != nil {
			return fmt.Errorf("yarn %s: %w", args[0], err)
		}
	}

	jr.engine.summary().TaskCompleted()
	return nil
}

func (jr *jobRun) runNpm(ctx context.Context) error {
	workspace, err := jr.needWorkspace("npm")
	if err != nil {
		return err
	}

	for _, args := range [][]string{{"install"}, {"run", "build"}} {
		if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{
			Command: "npm",
			Args:    args,
			Dir:     workspace,
			Stream:  jr.engine.console(),
		}); err != nil {
			return fmt.Errorf("npm %s: %w", args[len(args)-1], err)
		}
	}

	jr.engine.summary().TaskCompleted()
	return nil
}

// runGoBuild compiles a Go project in the workspace. Module init and
// dependency download are best-effort; projects that already carry a module
// file make both no-ops.
func (jr *jobRun) runGoBuild(ctx context.Context) error {
	workspace, err := jr.needWorkspace("go_build")
	if err != nil {
		return err
	}

	for _, args := range [][]string{{"mod", "init"}, {"get", "./..."}} {
		if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{
			Command: "go",
			Args:    args,
			Dir:     workspace,
			Stream:  jr.engine.console(),
		}); err != nil {
			jr.log.WithField("args", args).Debug("Preparation step failed; continuing")
		}
	}

	if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{
		Command: "go",
		Args:    []string{"build", "-v"},
		Dir:     workspace,
		Stream:  jr.engine.console(),
	}); err != nil {
		return fmt.Errorf("go build: %w", err)
	}

	jr.engine.summary().TaskCompleted()
	return nil
}
