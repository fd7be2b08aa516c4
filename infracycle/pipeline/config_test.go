package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `jobs:
  - name: backend
    stages:
      - name: Build
        tasks:
          setup_and_clone:
            enabled: true
            source_url: https://example.com/app.git
          docker_build:
            enabled: true
          maven:
            enabled: true
          gradle:
            enabled: true
          ant:
            enabled: true
          trivy:
            enabled: true
          docker_hub:
            enabled: true
            username: bob
            repository: app
            built_image_name: app:latest
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Jobs, 1)

	tasks := cfg.Jobs[0].Stages[0].Tasks
	assert.Equal(t, DefaultCloneDir, tasks.Clone.CloneDir)
	assert.Equal(t, []string{"main"}, tasks.Clone.Branches)
	assert.Equal(t, "docker_image", tasks.DockerBuild.ImageName)
	assert.Equal(t, "latest", tasks.DockerBuild.BuildTag)
	assert.Equal(t, "latest", tasks.DockerHub.ImageTag)
	assert.Equal(t, "pom.xml", tasks.Maven.ProjectPom)
	assert.Equal(t, "clean install", tasks.Maven.Goals)
	assert.Equal(t, "/tmp/maven_artifacts", tasks.Maven.OutputDir)
	assert.Equal(t, "build", tasks.Gradle.Target)
	assert.Equal(t, "build.xml", tasks.Ant.BuildFile)
	assert.Equal(t, "build", tasks.Ant.Target)
	assert.Equal(t, "image", tasks.Trivy.TargetType)
	assert.Equal(t, "dob-trial-build:v6", tasks.Trivy.Target)
	assert.Equal(t, "json", tasks.Trivy.Format)
	assert.Equal(t, "UNKNOWN,LOW,MEDIUM,HIGH,CRITICAL", tasks.Trivy.Severity)
}

func TestLoadConfigKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `jobs:
  - name: backend
    stages:
      - name: Build
        ignore_failure: true
        tasks:
          setup_and_clone:
            enabled: true
            source_url: https://example.com/app.git
            branches: [main, develop]
            clone_dir: /srv/work
          sh:
            enabled: true
            steps:
              - echo one
              - echo two
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	stage := cfg.Jobs[0].Stages[0]
	assert.True(t, stage.IgnoreFailure)
	assert.Equal(t, "/srv/work", stage.Tasks.Clone.CloneDir)
	assert.Equal(t, []string{"main", "develop"}, stage.Tasks.Clone.Branches)
	assert.Equal(t, []string{"echo one", "echo two"}, stage.Tasks.Sh.Steps)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "no jobs",
			cfg:     Config{},
			wantErr: "no jobs",
		},
		{
			name: "duplicate job names",
			cfg: Config{Jobs: []Job{
				{Name: "a", Stages: []Stage{{Name: "s"}}},
				{Name: "a", Stages: []Stage{{Name: "s"}}},
			}},
			wantErr: "duplicate job name",
		},
		{
			name:    "job without stages",
			cfg:     Config{Jobs: []Job{{Name: "a"}}},
			wantErr: "has no stages",
		},
		{
			name: "unnamed stage",
			cfg: Config{Jobs: []Job{
				{Name: "a", Stages: []Stage{{}}},
			}},
			wantErr: "stage with no name",
		},
		{
			name: "clone without source",
			cfg: Config{Jobs: []Job{
				{Name: "a", Stages: []Stage{{
					Name:  "s",
					Tasks: Tasks{Clone: &CloneTask{Enabled: true}},
				}}},
			}},
			wantErr: "needs source_url",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	valid := Config{Jobs: []Job{{Name: "a", Stages: []Stage{{Name: "s"}}}}}
	assert.NoError(t, valid.Validate())
}
