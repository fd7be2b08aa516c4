// Package pipeline runs a declarative build definition to completion: every
// job in parallel, the stages of a job in order, the tasks of a stage in a
// fixed canonical order. One invocation processes one config; there is no
// queue and no daemon.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	cm "github.com/Devops-Bot-Official/infracycle-agent/infracycle/commandmanager"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/filemanager"
)

type Engine struct {
	Commands cm.CommandManager
	Files    filemanager.FileManager
	Logger   *logrus.Logger

	// Console receives the human-facing progress surface; defaults to
	// stdout. Structured logging goes through Logger separately.
	Console io.Writer

	// Concurrency bounds how many jobs run at once; zero or negative
	// means all of them.
	Concurrency int

	Summary  *Summary
	Mailer   Mailer
	Approver Approver
}

func (e *Engine) console() io.Writer {
	if e.Console != nil {
		return e.Console
	}
	return os.Stdout
}

func (e *Engine) files() filemanager.FileManager {
	if e.Files != nil {
		return e.Files
	}
	return &filemanager.UnixFileManager{}
}

func (e *Engine) summary() *Summary {
	if e.Summary == nil {
		e.Summary = &Summary{}
	}
	return e.Summary
}

func (e *Engine) mailer() Mailer {
	if e.Mailer != nil {
		return e.Mailer
	}
	return &smtpMailer{}
}

func (e *Engine) approver() Approver {
	if e.Approver != nil {
		return e.Approver
	}
	return &consoleApprover{In: os.Stdin, Out: e.console()}
}

// Run executes every job of the config and reports the final counters. The
// error aggregates all failed jobs; a non-nil error means the run must
// surface a non-zero exit.
func (e *Engine) Run(ctx context.Context, cfg Config) (Totals, error) {
	fmt.Fprintln(e.console(), banner("DEVOPS-BOT INFRACYCLE BUILD STARTED"))

	limit := e.Concurrency
	if limit <= 0 || limit > len(cfg.Jobs) {
		limit = len(cfg.Jobs)
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var runErr *multierror.Error

	for _, job := range cfg.Jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := e.runJob(ctx, job); err != nil {
				mu.Lock()
				runErr = multierror.Append(runErr, fmt.Errorf("job %s: %w", job.Name, err))
				mu.Unlock()
			}
		}(job)
	}
	wg.Wait()

	fmt.Fprintln(e.console(), banner("DEVOPS-BOT INFRACYCLE BUILD COMPLETED"))

	totals := e.summary().Snapshot()
	fmt.Fprintf(e.console(), "Tasks completed: %d\n", totals.Completed)
	fmt.Fprintf(e.console(), "Tasks failed:    %d\n", totals.Failed)
	fmt.Fprintf(e.console(), "Images uploaded: %d\n", totals.Uploaded)

	return totals, runErr.ErrorOrNil()
}

func (e *Engine) runJob(ctx context.Context, job Job) error {
	jr := &jobRun{
		engine: e,
		job:    job.Name,
		log:    e.Logger.WithField("job", job.Name),
	}

	for _, stage := range job.Stages {
		fmt.Fprintln(e.console(), stageStyle.Render(fmt.Sprintf("--- %s / %s ---", job.Name, stage.Name)))
		if err := jr.runStage(ctx, stage); err != nil {
			jr.log.WithField("stage", stage.Name).WithError(err).Error("Stage failed; remaining stages skipped")
			return fmt.Errorf("stage %s: %w", stage.Name, err)
		}
	}

	jr.log.Info("Job finished")
	return nil
}

// jobRun is the per-job execution state. The workspace established by a
// clone task flows to every later task of the same job.
type jobRun struct {
	engine    *Engine
	job       string
	log       *logrus.Entry
	workspace string
}

func (jr *jobRun) runStage(ctx context.Context, stage Stage) error {
	t := stage.Tasks
	tasks := []struct {
		name    string
		enabled bool
		run     func(context.Context) error
	}{
		{"setup_and_clone", t.Clone != nil && t.Clone.Enabled, func(ctx context.Context) error { return jr.setupAndClone(ctx, *t.Clone) }},
		{"docker_build", t.DockerBuild != nil && t.DockerBuild.Enabled, func(ctx context.Context) error { return jr.dockerBuild(ctx, *t.DockerBuild) }},
		{"docker_hub", t.DockerHub != nil && t.DockerHub.Enabled, func(ctx context.Context) error { return jr.dockerHubPush(ctx, *t.DockerHub) }},
		{"sh", t.Sh != nil && t.Sh.Enabled, func(ctx context.Context) error { return jr.runSh(ctx, *t.Sh) }},
		{"bash", t.Bash != nil && t.Bash.Enabled, func(ctx context.Context) error { return jr.runBash(ctx, *t.Bash) }},
		{"maven", t.Maven != nil && t.Maven.Enabled, func(ctx context.Context) error { return jr.runMaven(ctx, *t.Maven) }},
		{"send_notification", t.Notification != nil && t.Notification.Enabled, func(ctx context.Context) error { return jr.sendNotification(ctx, *t.Notification) }},
		{"gradle", t.Gradle != nil && t.Gradle.Enabled, func(ctx context.Context) error { return jr.runGradle(ctx, *t.Gradle) }},
		{"ant", t.Ant != nil && t.Ant.Enabled, func(ctx context.Context) error { return jr.runAnt(ctx, *t.Ant) }},
		{"trivy", t.Trivy != nil && t.Trivy.Enabled, func(ctx context.Context) error { return jr.runTrivy(ctx, *t.Trivy) }},
		{"yarn", t.Yarn != nil && t.Yarn.Enabled, func(ctx context.Context) error { return jr.runYarn(ctx) }},
		{"go_build", t.GoBuild != nil && t.GoBuild.Enabled, func(ctx context.Context) error { return jr.runGoBuild(ctx) }},
		{"npm", t.Npm != nil && t.Npm.Enabled, func(ctx context.Context) error { return jr.runNpm(ctx) }},
		{"sonarqube_analysis", t.Sonar != nil && t.Sonar.Enabled, func(ctx context.Context) error { return jr.runSonar(ctx, *t.Sonar) }},
		{"request_approval", t.Approval != nil && t.Approval.Enabled, func(ctx context.Context) error { return jr.requestApproval(ctx, *t.Approval) }},
	}

	for _, task := range tasks {
		if !task.enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		jr.announce(task.name)
		if err := task.run(ctx); err != nil {
			jr.engine.summary().TaskFailed()
			if !stage.IgnoreFailure {
				fmt.Fprintln(jr.engine.console(), failureStyle.Render(fmt.Sprintf("[%s] %s failed: %v", jr.job, task.name, err)))
				return fmt.Errorf("task %s: %w", task.name, err)
			}
			jr.log.WithField("task", task.name).WithError(err).Warn("Task failed; stage ignores failures")
			fmt.Fprintln(jr.engine.console(), warnStyle.Render(fmt.Sprintf("[%s] %s failed (ignored): %v", jr.job, task.name, err)))
			continue
		}
		fmt.Fprintln(jr.engine.console(), successStyle.Render(fmt.Sprintf("[%s] %s done", jr.job, task.name)))
	}
	return nil
}

func (jr *jobRun) announce(task string) {
	jr.log.WithField("task", task).Info("Starting task")
	fmt.Fprintln(jr.engine.console(), taskStyle.Render(fmt.Sprintf("[%s] %s", jr.job, task)))
}

// needWorkspace guards tasks that only make sense inside a cloned source
// tree.
func (jr *jobRun) needWorkspace(task string) (string, error) {
	if jr.workspace == "" {
		return "", fmt.Errorf("%s needs a workspace; run setup_and_clone first", task)
	}
	return jr.workspace, nil
}
