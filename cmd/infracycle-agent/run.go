package main

import (
	"fmt"

	"github.com/spf13/cobra"

	cm "github.com/Devops-Bot-Official/infracycle-agent/infracycle/commandmanager"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/filemanager"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/pipeline"
)

func newRunCommand() *cobra.Command {
	var configPath string
	var concurrency int
	var noLock bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the mounted pipeline definition",
		Long: `Runs every job of the pipeline config in parallel and exits non-zero
when any task failed. This is the container entrypoint; the config is
expected at ` + pipeline.DefaultConfigPath + ` unless --config points
elsewhere.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := buildLogger()
			if err != nil {
				return err
			}

			cfg, err := pipeline.LoadConfig(configPath)
			if err != nil {
				return err
			}

			if !noLock {
				lock := &pipeline.RunLock{Logger: log}
				if err := lock.Acquire(); err != nil {
					return err
				}
				defer func() {
					if err := lock.Release(); err != nil {
						log.WithError(err).Warn("Could not remove run lock")
					}
				}()
			}

			engine := &pipeline.Engine{
				Commands:    &cm.UnixCommandManager{Logger: log},
				Files:       &filemanager.UnixFileManager{},
				Logger:      log,
				Concurrency: concurrency,
			}

			totals, err := engine.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if totals.Failed > 0 {
				return fmt.Errorf("%d task(s) failed", totals.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", pipeline.DefaultConfigPath, "pipeline definition file")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "maximum jobs in flight (0 = all at once)")
	cmd.Flags().BoolVar(&noLock, "no-lock", false, "skip the single-run guard")
	return cmd
}
