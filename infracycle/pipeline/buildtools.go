package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cm "github.com/Devops-Bot-Official/infracycle-agent/infracycle/commandmanager"
)

func (jr *jobRun) runMaven(ctx context.Context, task MavenTask) error {
	workspace, err := jr.needWorkspace("maven")
	if err != nil {
		return err
	}

	args := []string{"-f", task.ProjectPom}
	args = append(args, strings.Fields(task.Goals)...)
	if task.Profiles != "" {
		args = append(args, "-P"+task.Profiles)
	}
	args = append(args, "--batch-mode")

	if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{
		Command: "mvn",
		Args:    args,
		Dir:     workspace,
		Stream:  jr.engine.console(),
	}); err != nil {
		return fmt.Errorf("mvn %s: %w", task.Goals, err)
	}

	if err := jr.collectMavenArtifacts(workspace, task.OutputDir); err != nil {
		return err
	}

	jr.engine.summary().TaskCompleted()
	return nil
}

// collectMavenArtifacts moves the jars and wars from the build's target
// directory to the configured drop location. A project that produced none
// is not an error.
func (jr *jobRun) collectMavenArtifacts(workspace, outputDir string) error {
	targetDir := filepath.Join(workspace, "target")
	entries, err := os.ReadDir(targetDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("scan %s: %w", targetDir, err)
	}

	files := jr.engine.files()
	moved := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".jar" && ext != ".war" {
			continue
		}

		if moved == 0 {
			if err := files.CreateDirectory(outputDir, 0o755); err != nil {
				return fmt.Errorf("create artifact dir %s: %w", outputDir, err)
			}
		}
		src := filepath.Join(targetDir, entry.Name())
		dst := filepath.Join(outputDir, entry.Name())
		if err := files.MoveFile(src, dst); err != nil {
			return fmt.Errorf("collect artifact %s: %w", entry.Name(), err)
		}
		moved++
	}

	if moved > 0 {
		jr.log.WithFields(map[string]interface{}{
			"artifacts": moved,
			"dir":       outputDir,
		}).Info("Collected build artifacts")
	}
	return nil
}

// runGradle prefers the project's own wrapper script over a system gradle.
func (jr *jobRun) runGradle(ctx context.Context, task GradleTask) error {
	workspace, err := jr.needWorkspace("gradle")
	if err != nil {
		return err
	}

	command := "gradle"
	wrapper := filepath.Join(workspace, "gradlew")
	if hasWrapper, err := jr.engine.files().Exists(wrapper); err == nil && hasWrapper {
		command = "./gradlew"
	}

	if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{
		Command: command,
		Args:    []string{task.Target, "--no-daemon"},
		Dir:     workspace,
		Stream:  jr.engine.console(),
	}); err != nil {
		return fmt.Errorf("gradle %s: %w", task.Target, err)
	}

	jr.engine.summary().TaskCompleted()
	return nil
}

func (jr *jobRun) runAnt(ctx context.Context, task AntTask) error {
	workspace, err := jr.needWorkspace("ant")
	if err != nil {
		return err
	}

	if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{
		Command: "ant",
		Args:    []string{"-f", task.BuildFile, task.Target},
		Dir:     workspace,
		Stream:  jr.engine.console(),
	}); err != nil {
		return fmt.Errorf("ant %s: %w", task.Target, err)
	}

	jr.engine.summary().TaskCompleted()
	return nil
}
