package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "workeragent",
	Short: "Generate, run and repair Python scripts from a task description",
	Long: `workeragent interviews the operator about a task, drafts a roadmap and then
iterates: the model writes files into the workspace, dependencies are installed
into an isolated environment, the scripts run, and failures are fed back until
the model judges the task done or the iteration budget runs out.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(artifactsCmd)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
