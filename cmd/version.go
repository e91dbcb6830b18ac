package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information, injected at build time via ldflags.
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println(fmt.Sprintf("wildrag %s", AppVersion))
		cmd.Println(fmt.Sprintf("Build Time: %s", BuildTime))
		cmd.Println(fmt.Sprintf("Git Commit: %s", GitCommit))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
