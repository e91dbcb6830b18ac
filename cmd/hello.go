package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var helloName string

var helloCmd = &cobra.Command{
	Use:   "hello",
	Short: "Check that the CLI is wired up",
	Run: func(cmd *cobra.Command, _ []string) {
		if helloName != "" {
			cmd.Println(fmt.Sprintf("Hello, %s!", helloName))
			return
		}
		cmd.Println("Hello from wildrag!")
	},
}

func init() {
	helloCmd.Flags().StringVar(&helloName, "name", "", "name to greet")
	rootCmd.AddCommand(helloCmd)
}
