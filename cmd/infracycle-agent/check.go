package main

import (
	"github.com/spf13/cobra"
)

func newCheckCommand() *cobra.Command {
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the installed toolchain against the manifest",
		Long: `Read-only re-check of every manifest item. All misses are reported
at once, and any miss makes the command exit non-zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := buildLogger()
			if err != nil {
				return err
			}

			manifest, err := loadManifest(manifestPath)
			if err != nil {
				return err
			}

			if err := newProvisioner(log, false).Verify(cmd.Context(), manifest); err != nil {
				return err
			}
			log.Info("All manifest items are in place")
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "toolchain manifest file (default: built-in set)")
	return cmd
}
