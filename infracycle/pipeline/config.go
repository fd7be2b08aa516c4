package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the container entrypoint expects the mounted
// pipeline definition.
const DefaultConfigPath = "/app/config.yaml"

// DefaultCloneDir is the workspace used when a clone task does not name one.
const DefaultCloneDir = "/tmp/clone_repo_trial"

var ErrConfigNotFound = errors.New("pipeline config not found")

// Config is the root of a pipeline definition: jobs run in parallel, the
// stages of a job run in order.
type Config struct {
	Jobs []Job `yaml:"jobs"`
}

type Job struct {
	Name   string  `yaml:"name"`
	Stages []Stage `yaml:"stages"`
}

type Stage struct {
	Name string `yaml:"name"`

	// IgnoreFailure keeps the job going past failing tasks in this stage.
	IgnoreFailure bool `yaml:"ignore_failure"`

	Tasks Tasks `yaml:"tasks"`
}

// Tasks holds one optional block per supported task type. Present blocks
// with enabled: true run in a fixed order regardless of their order in the
// document.
type Tasks struct {
	Clone        *CloneTask        `yaml:"setup_and_clone"`
	DockerBuild  *DockerBuildTask  `yaml:"docker_build"`
	DockerHub    *DockerHubTask    `yaml:"docker_hub"`
	Sh           *ShellTask        `yaml:"sh"`
	Bash         *ShellTask        `yaml:"bash"`
	Maven        *MavenTask        `yaml:"maven"`
	Notification *NotificationTask `yaml:"send_notification"`
	Gradle       *GradleTask       `yaml:"gradle"`
	Ant          *AntTask          `yaml:"ant"`
	Trivy        *TrivyTask        `yaml:"trivy"`
	Yarn         *YarnTask         `yaml:"yarn"`
	GoBuild      *GoBuildTask      `yaml:"go_build"`
	Npm          *NpmTask          `yaml:"npm"`
	Sonar        *SonarTask        `yaml:"sonarqube_analysis"`
	Approval     *ApprovalTask     `yaml:"request_approval"`
}

type CloneTask struct {
	Enabled     bool     `yaml:"enabled"`
	SourceURL   string   `yaml:"source_url"`
	Branches    []string `yaml:"branches"`
	PrivateRepo bool     `yaml:"private_repo"`
	Username    string   `yaml:"username"`
	Token       string   `yaml:"token"`
	CloneDir    string   `yaml:"clone_dir"`
}

type DockerBuildTask struct {
	Enabled   bool   `yaml:"enabled"`
	ImageName string `yaml:"image_name"`
	BuildTag  string `yaml:"build_tag"`

	// DockerfilePath defaults to the Dockerfile at the workspace root.
	DockerfilePath string `yaml:"dockerfile_path"`
}

type DockerHubTask struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`

	// Password may be left empty; an interactive run prompts for it
	// without echo.
	Password       string `yaml:"password"`
	Repository     string `yaml:"repository"`
	BuiltImageName string `yaml:"built_image_name"`
	ImageTag       string `yaml:"image_tag"`
}

// ShellTask runs each step as its own script. The sh task uses a built-in
// POSIX interpreter; the bash task shells out.
type ShellTask struct {
	Enabled bool     `yaml:"enabled"`
	Steps   []string `yaml:"steps"`
}

type MavenTask struct {
	Enabled    bool   `yaml:"enabled"`
	ProjectPom string `yaml:"project_pom"`
	Goals      string `yaml:"goals"`
	Profiles   string `yaml:"profiles"`

	// OutputDir collects the jar and war artifacts after a successful
	// build.
	OutputDir string `yaml:"output_dir"`
}

type GradleTask struct {
	Enabled bool   `yaml:"enabled"`
	Target  string `yaml:"target"`
}

type AntTask struct {
	Enabled   bool   `yaml:"enabled"`
	BuildFile string `yaml:"build_file"`
	Target    string `yaml:"target"`
}

type TrivyTask struct {
	Enabled    bool   `yaml:"enabled"`
	TargetType string `yaml:"target_type"`
	Target     string `yaml:"target"`
	Format     string `yaml:"format"`
	Severity   string `yaml:"severity"`
}

type YarnTask struct {
	Enabled bool `yaml:"enabled"`
}

type NpmTask struct {
	Enabled bool `yaml:"enabled"`
}

type GoBuildTask struct {
	Enabled bool `yaml:"enabled"`
}

type SonarTask struct {
	Enabled    bool   `yaml:"enabled"`
	ServerURL  string `yaml:"server_url"`
	ProjectKey string `yaml:"project_key"`
	Token      string `yaml:"token"`
	SourceDir  string `yaml:"source_dir"`
}

type NotificationTask struct {
	Enabled     bool        `yaml:"enabled"`
	TaskName    string      `yaml:"task_name"`
	Status      string      `yaml:"status"`
	Recipients  []string    `yaml:"recipients"`
	EmailConfig EmailConfig `yaml:"email_config"`
}

type EmailConfig struct {
	SMTPServer     string `yaml:"smtp_server"`
	SMTPPort       int    `yaml:"smtp_port"`
	SenderEmail    string `yaml:"sender_email"`
	SenderPassword string `yaml:"sender_password"`
}

type ApprovalTask struct {
	Enabled  bool   `yaml:"enabled"`
	TaskName string `yaml:"task_name"`
}

// LoadConfig reads, defaults and validates a pipeline definition.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Jobs {
		for j := range c.Jobs[i].Stages {
			c.Jobs[i].Stages[j].Tasks.applyDefaults()
		}
	}
}

func (t *Tasks) applyDefaults() {
	if clone := t.Clone; clone != nil {
		if clone.CloneDir == "" {
			clone.CloneDir = DefaultCloneDir
		}
		if len(clone.Branches) == 0 {
			clone.Branches = []string{"main"}
		}
	}
	if build := t.DockerBuild; build != nil {
		if build.ImageName == "" {
			build.ImageName = "docker_image"
		}
		if build.BuildTag == "" {
			build.BuildTag = "latest"
		}
	}
	if hub := t.DockerHub; hub != nil && hub.ImageTag == "" {
		hub.ImageTag = "latest"
	}
	if maven := t.Maven; maven != nil {
		if maven.ProjectPom == "" {
			maven.ProjectPom = "pom.xml"
		}
		if maven.Goals == "" {
			maven.Goals = "clean install"
		}
		if maven.OutputDir == "" {
			maven.OutputDir = "/tmp/maven_artifacts"
		}
	}
	if gradle := t.Gradle; gradle != nil && gradle.Target == "" {
		gradle.Target = "build"
	}
	if ant := t.Ant; ant != nil {
		if ant.BuildFile == "" {
			ant.BuildFile = "build.xml"
		}
		if ant.Target == "" {
			ant.Target = "build"
		}
	}
	if trivy := t.Trivy; trivy != nil {
		if trivy.TargetType == "" {
			trivy.TargetType = "image"
		}
		if trivy.Target == "" {
			trivy.Target = "dob-trial-build:v6"
		}
		if trivy.Format == "" {
			trivy.Format = "json"
		}
		if trivy.Severity == "" {
			trivy.Severity = "UNKNOWN,LOW,MEDIUM,HIGH,CRITICAL"
		}
	}
}

func (c Config) Validate() error {
	if len(c.Jobs) == 0 {
		return errors.New("no jobs defined")
	}

	seen := make(map[string]struct{}, len(c.Jobs))
	for i, job := range c.Jobs {
		if job.Name == "" {
			return fmt.Errorf("jobs[%d] has no name", i)
		}
		if _, dup := seen[job.Name]; dup {
			return fmt.Errorf("duplicate job name %q", job.Name)
		}
		seen[job.Name] = struct{}{}

		if len(job.Stages) == 0 {
			return fmt.Errorf("job %s has no stages", job.Name)
		}
		for _, stage := range job.Stages {
			if stage.Name == "" {
				return fmt.Errorf("job %s has a stage with no name", job.Name)
			}
			if clone := stage.Tasks.Clone; clone != nil && clone.Enabled && clone.SourceURL == "" {
				return fmt.Errorf("job %s stage %s: setup_and_clone needs source_url", job.Name, stage.Name)
			}
		}
	}
	return nil
}
