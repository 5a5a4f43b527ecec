package cmd

import (
	"github.com/spf13/cobra"

	"github.com/psantana5/svclaunch/internal/supervisor"
	"github.com/psantana5/svclaunch/pkg/logging"
)

var execSkipGenerate bool

var execCmd = &cobra.Command{
	Use:   "exec [service]",
	Short: "Generate sources if missing, then replace the launcher with the server",
	Long: `Exec runs the service's generate step when its marker file is absent and
then replaces the launcher's process image with the server command. No PID
file is written and output is not redirected, so the server inherits the
launcher's PID and stdio. Suited to containers where the runtime supervises
PID 1.

Example:
  svclaunch exec photo-of-day-service`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)

	execCmd.Flags().BoolVar(&execSkipGenerate, "skip-generate", false, "do not run the generate step")
}

func runExec(cmd *cobra.Command, args []string) error {
	sc, err := cfg.Service(serviceArg(args))
	if err != nil {
		return err
	}

	if !execSkipGenerate {
		if _, err := ensureGenerated(cmd.Context(), sc, false); err != nil {
			return err
		}
	}

	logger.Info("Starting "+sc.Supervised().Display(), logging.Fields{"service": sc.Name, "command": sc.Supervised().CommandLine()})
	return supervisor.Exec(sc.Supervised())
}
