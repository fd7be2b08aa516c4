package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	cm "github.com/Devops-Bot-Official/infracycle-agent/infracycle/commandmanager"
)

func (jr *jobRun) dockerBuild(ctx context.Context, task DockerBuildTask) error {
	if err := jr.ensureDocker(ctx); err != nil {
		return err
	}

	workspace, err := jr.needWorkspace("docker_build")
	if err != nil {
		return err
	}

	dockerfile := task.DockerfilePath
	if dockerfile == "" {
		dockerfile = filepath.Join(workspace, "Dockerfile")
	}
	image := fmt.Sprintf("%s:%s", task.ImageName, task.BuildTag)

	if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{
		Command: "docker",
		Args:    []string{"build", "-t", image, "-f", dockerfile, workspace},
		Stream:  jr.engine.console(),
	}); err != nil {
		return fmt.Errorf("docker build %s: %w", image, err)
	}

	jr.log.WithField("image", image).Info("Image built")
	jr.engine.summary().TaskCompleted()
	return nil
}

// dockerHubPush logs in with the password on stdin, retags the built image
// under the registry namespace and pushes it. A successful push counts as
// an upload.
func (jr *jobRun) dockerHubPush(ctx context.Context, task DockerHubTask) error {
	if err := jr.ensureDocker(ctx); err != nil {
		return err
	}
	if task.Username == "" || task.Repository == "" || task.BuiltImageName == "" {
		return errors.New("docker_hub needs username, repository and built_image_name")
	}

	password, err := jr.registryPassword(task)
	if err != nil {
		return err
	}

	if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{
		Command:   "docker",
		Args:      []string{"login", "-u", task.Username, "--password-stdin"},
		Stdin:     strings.NewReader(password),
		Sensitive: true,
	}); err != nil {
		return fmt.Errorf("docker login as %s: %w", task.Username, err)
	}

	target := fmt.Sprintf("%s/%s:%s", task.Username, task.Repository, task.ImageTag)
	if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{
		Command: "docker",
		Args:    []string{"tag", task.BuiltImageName, target},
	}); err != nil {
		return fmt.Errorf("docker tag %s: %w", target, err)
	}

	if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{
		Command: "docker",
		Args:    []string{"push", target},
		Stream:  jr.engine.console(),
	}); err != nil {
		return fmt.Errorf("docker push %s: %w", target, err)
	}

	jr.log.WithField("image", target).Info("Image pushed")
	jr.engine.summary().ArtifactUploaded()
	jr.engine.summary().TaskCompleted()
	return nil
}

func (jr *jobRun) ensureDocker(ctx context.Context) error {
	if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{Command: "docker", Args: []string{"--version"}}); err == nil {
		return nil
	}

	jr.log.Warn("Docker missing; installing")
	if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{Command: "apt-get", Args: []string{"update"}, Stream: jr.engine.console()}); err != nil {
		return fmt.Errorf("apt-get update: %w", err)
	}
	if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{Command: "apt-get", Args: []string{"install", "-y", "docker.io"}, Stream: jr.engine.console()}); err != nil {
		return fmt.Errorf("install docker: %w", err)
	}
	return nil
}

func (jr *jobRun) registryPassword(task DockerHubTask) (string, error) {
	if task.Password != "" {
		return task.Password, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("registry password not configured and no terminal to prompt on")
	}

	fmt.Fprintf(jr.engine.console(), "Registry password for %s: ", task.Username)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(jr.engine.console())
	if err != nil {
		return "", fmt.Errorf("read registry password: %w", err)
	}
	return string(raw), nil
}
