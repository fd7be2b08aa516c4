package pipeline

import (
	"context"
	"errors"
	"fmt"

	cm "github.com/Devops-Bot-Official/infracycle-agent/infracycle/commandmanager"
)

func (jr *jobRun) runTrivy(ctx context.Context, task TrivyTask) error {
	if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{
		Command: "trivy",
		Args: []string{
			task.TargetType, task.Target,
			"--format", task.Format,
			"--severity", task.Severity,
		},
		Stream: jr.engine.console(),
	}); err != nil {
		return fmt.Errorf("trivy %s %s: %w", task.TargetType, task.Target, err)
	}

	jr.engine.summary().TaskCompleted()
	return nil
}

// runSonar refuses to assemble a partial scanner invocation: either all
// required connection settings are present or the task fails before any
// command runs.
func (jr *jobRun) runSonar(ctx context.Context, task SonarTask) error {
	if task.ServerURL == "" || task.ProjectKey == "" || task.Token == "" {
		return errors.New("sonarqube_analysis needs server_url, project_key and token")
	}

	sourceDir := task.SourceDir
	if sourceDir == "" {
		workspace, err := jr.needWorkspace("sonarqube_analysis")
		if err != nil {
			return err
		}
		sourceDir = workspace
	}

	if _, err := jr.engine.Commands.Run(ctx, cm.CommandConfig{
		Command: "sonar-scanner",
		Args: []string{
			"-Dsonar.projectKey=" + task.ProjectKey,
			"-Dsonar.sources=" + sourceDir,
			"-Dsonar.projectBaseDir=" + sourceDir,
			"-Dsonar.host.url=" + task.ServerURL,
			"-Dsonar.login=" + task.Token,
		},
		Sensitive: true,
		Stream:    jr.engine.console(),
	}); err != nil {
		return fmt.Errorf("sonar-scanner for %s: %w", task.ProjectKey, err)
	}

	jr.engine.summary().TaskCompleted()
	return nil
}
