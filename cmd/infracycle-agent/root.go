package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cm "github.com/Devops-Bot-Official/infracycle-agent/infracycle/commandmanager"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/filemanager"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/platform"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/provisioner"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/repomanager"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/statemanager"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/toolmanager"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/version"
	"github.com/Devops-Bot-Official/infracycle-agent/logger"
)

var logLevel string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "infracycle-agent",
		Short:        "Provisions a build toolchain and runs declarative build pipelines",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", logger.DefaultLevel, "log verbosity (trace, debug, info, warning, error)")

	root.AddCommand(newProvisionCommand())
	root.AddCommand(newRunCommand())
	root.AddCommand(newCheckCommand())
	version.AttachCobraVersionCommand(root)
	return root
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the command context so
// in-flight child processes are stopped.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return newRootCommand().ExecuteContext(ctx)
}

func buildLogger() (*logrus.Logger, error) {
	return logger.New(logLevel)
}

// loadManifest resolves --manifest, falling back to the built-in toolchain.
func loadManifest(path string) (provisioner.Manifest, error) {
	if path == "" {
		return provisioner.DefaultManifest(), nil
	}
	return provisioner.LoadManifest(path)
}

func newProvisioner(log *logrus.Logger, sudo bool) *provisioner.Provisioner {
	files := &filemanager.UnixFileManager{}
	return &provisioner.Provisioner{
		Detector: platform.OSReleaseDetector{},
		Commands: &cm.UnixCommandManager{Logger: log},
		Tools: &toolmanager.Installer{
			Files:  files,
			States: &statemanager.FileStateManager{},
			Logger: log,
		},
		Repos: &repomanager.Manager{
			Files:  files,
			Logger: log,
		},
		Logger: log,
		Sudo:   sudo,
	}
}
