package commandmanager

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// UnixCommandManager runs programs on the local system. All side effects
// of the provisioner and the pipeline funnel through here, which is what
// keeps everything above it testable.
type UnixCommandManager struct {
	Logger *logrus.Logger

	// SudoPassword is fed to sudo -S when Sudo is requested and the
	// process is not already root. Empty means sudo runs with -n.
	SudoPassword string
}

func (u *UnixCommandManager) Run(ctx context.Context, config CommandConfig) (CommandResult, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, config.Command, config.Args...)
	cmd.Stdin = config.Stdin

	if config.Sudo {
		if u.SudoPassword != "" {
			cmdArgs := append([]string{"sudo", "-S", config.Command}, config.Args...)
			cmd = exec.CommandContext(ctx, cmdArgs[0], cmdArgs[1:]...)
			cmd.Stdin = strings.NewReader(u.SudoPassword + "\n")
		} else {
			cmdArgs := append([]string{"sudo", "-n", config.Command}, config.Args...)
			cmd = exec.CommandContext(ctx, cmdArgs[0], cmdArgs[1:]...)
			cmd.Stdin = config.Stdin
		}
	}

	if config.Dir != "" {
		cmd.Dir = config.Dir
	}
	if len(config.Env) > 0 {
		cmd.Env = append(os.Environ(), config.Env...)
	}

	var stdout, stderr strings.Builder
	var stdoutW io.Writer = &stdout
	var stderrW io.Writer = &stderr
	if config.Stream != nil {
		stdoutW = io.MultiWriter(&stdout, config.Stream)
		stderrW = io.MultiWriter(&stderr, config.Stream)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	err := cmd.Run()

	duration := time.Since(start)
	result := CommandResult{
		Command:   config.Command,
		STDOUT:    stdout.String(),
		STDERR:    stderr.String(),
		ExitCode:  getExitCode(err),
		Duration:  duration,
		Timestamp: start,
	}

	if u.Logger != nil {
		args := strings.Join(config.Args, " ")
		if config.Sensitive {
			args = "[redacted]"
		}
		u.Logger.WithFields(logrus.Fields{
			"command":  config.Command,
			"args":     args,
			"exitCode": result.ExitCode,
			"duration": duration,
		}).Debug("Command finished")
	}

	// Check for sudo-related errors
	if strings.Contains(result.STDERR, "incorrect password") {
		return result, errors.New("sudo: incorrect password provided")
	}
	if strings.Contains(result.STDERR, "is not in the sudoers file") {
		return result, errors.New("sudo: user is not in the sudoers file")
	}

	return result, err
}

func (u *UnixCommandManager) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func getExitCode(err error) int {
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			status := exitError.Sys().(syscall.WaitStatus)
			return status.ExitStatus()
		}
		return -1
	}
	return 0
}
