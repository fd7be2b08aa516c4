package pipeline

import (
	"context"
	"fmt"
	"net/url"

	cm "github.com/Devops-Bot-Official/infracycle-agent/infracycle/commandmanager"
)

// setupAndClone materializes the job workspace: a fresh clone of the first
// branch, with every further branch fetched and checked out in turn. The
// last branch stays checked out. Each cloned branch counts as one completed
// unit of work.
func (jr *jobRun) setupAndClone(ctx context.Context, task CloneTask) error {
	if err := jr.ensureTool(ctx, "git", []string{"install", "-y", "git"}); err != nil {
		return err
	}

	files := jr.engine.files()
	if err := files.DeleteDirectory(task.CloneDir); err != nil {
		return fmt.Errorf("reset clone dir %s: %w", task.CloneDir, err)
	}
	if err := files.CreateDirectory(task.CloneDir, 0o755); err != nil {
		return fmt.Errorf("create clone dir %s: %w", task.CloneDir, err)
	}

	cloneURL := task.SourceURL
	if task.PrivateRepo {
		authenticated, err := injectCredentials(task.SourceURL, task.Username, task.Token)
		if err != nil {
			return err
		}
		cloneURL = authenticated
	}

	for i, branch := range task.Branches {
		// The URL with credentials never reaches logs or the console.
		jr.log.WithFields(map[string]interface{}{
			"repository": task.SourceURL,
			"branch":     branch,
		}).Info("Fetching branch")

		var config cm.CommandConfig
		if i == 0 {
			config = cm.CommandConfig{
				Command:   "git",
				Args:      []string{"clone", "--branch", branch, cloneURL, task.CloneDir},
				Sensitive: task.PrivateRepo,
				Stream:    jr.engine.console(),
			}
		} else {
			if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{
				Command:   "git",
				Args:      []string{"fetch", "origin", branch},
				Dir:       task.CloneDir,
				Sensitive: task.PrivateRepo,
				Stream:    jr.engine.console(),
			}); err != nil {
				return fmt.Errorf("fetch branch %s: %w", branch, err)
			}
			config = cm.CommandConfig{
				Command: "git",
				Args:    []string{"checkout", branch},
				Dir:     task.CloneDir,
				Stream:  jr.engine.console(),
			}
		}

		if _, err := jr.engine.Commands.Run(ctx, config); err != nil {
			if i == 0 {
				return fmt.Errorf("clone branch %s: %w", branch, err)
			}
			return fmt.Errorf("checkout branch %s: %w", branch, err)
		}
		jr.engine.summary().TaskCompleted()
	}

	jr.workspace = task.CloneDir
	return nil
}

// ensureTool probes for a program and falls back to a best-effort package
// install when it is missing. The containers the agent ships in are
// Debian-family, so the fallback goes through apt-get.
func (jr *jobRun) ensureTool(ctx context.Context, program string, installArgs []string) error {
	if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{Command: program, Args: []string{"--version"}}); err == nil {
		return nil
	}

	jr.log.WithField("program", program).Warn("Program missing; installing")
	if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{Command: "apt-get", Args: installArgs, Stream: jr.engine.console()}); err != nil {
		return fmt.Errorf("install %s: %w", program, err)
	}
	return nil
}

// injectCredentials places user:token into an http(s) URL. The result is
// only ever handed to the underlying command, never printed.
func injectCredentials(rawURL, username, token string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse repository url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("private repository needs an http(s) url, got %q", parsed.Scheme)
	}
	if username == "" || token == "" {
		return "", fmt.Errorf("private repository needs username and token")
	}
	parsed.User = url.UserPassword(username, token)
	return parsed.String(), nil
}
