// Package version carries the build identity stamped in through ldflags.
package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set at build time:
//
//	-ldflags "-X .../infracycle/version.Version=v1.2.3 ..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

func String() string {
	return fmt.Sprintf("infracycle-agent %s (commit %s, built %s, %s)", Version, Commit, BuildTime, runtime.Version())
}

// AttachCobraVersionCommand adds the version subcommand to a root command.
func AttachCobraVersionCommand(root *cobra.Command) {
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), String())
		},
	})
}
