package main

import (
	"github.com/spf13/cobra"
)

func newProvisionCommand() *cobra.Command {
	var manifestPath string
	var sudo bool

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Install the build toolchain on this host",
		Long: `Detects the platform family, installs the packages, node globals,
signed repositories and versioned tools of the manifest, and records a
receipt per tool. Re-running against a provisioned host changes nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := buildLogger()
			if err != nil {
				return err
			}

			manifest, err := loadManifest(manifestPath)
			if err != nil {
				return err
			}

			return newProvisioner(log, sudo).Provision(cmd.Context(), manifest)
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "toolchain manifest file (default: built-in set)")
	cmd.Flags().BoolVar(&sudo, "sudo", false, "run package operations through sudo")
	return cmd
}
