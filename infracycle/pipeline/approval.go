package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Approver answers an interactive gate. Implementations must default to
// denial: an unanswerable prompt never approves.
type Approver interface {
	Approve(ctx context.Context, prompt string) (bool, error)
}

// consoleApprover reads one line from its input. Only an explicit yes
// approves; anything else, including EOF on a closed stdin, denies.
type consoleApprover struct {
	In  io.Reader
	Out io.Writer
}

func (a *consoleApprover) Approve(ctx context.Context, prompt string) (bool, error) {
	fmt.Fprintf(a.Out, "%s [y/N] ", prompt)

	reader := bufio.NewReader(a.In)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// requestApproval blocks the stage until an operator decides. Denial is a
// task failure, so a stage that must not continue without sign-off keeps
// ignore_failure at false.
func (jr *jobRun) requestApproval(ctx context.Context, task ApprovalTask) error {
	prompt := fmt.Sprintf("Approval required for task '%s'. Do you want to proceed?", task.TaskName)

	approved, err := jr.engine.approver().Approve(ctx, prompt)
	if err != nil {
		return fmt.Errorf("request approval for %s: %w", task.TaskName, err)
	}
	if !approved {
		return fmt.Errorf("approval denied for task '%s'", task.TaskName)
	}

	jr.log.WithField("task", task.TaskName).Info("Approved")
	jr.engine.summary().TaskCompleted()
	return nil
}
