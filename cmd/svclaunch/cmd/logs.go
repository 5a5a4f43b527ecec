package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/psantana5/svclaunch/internal/logtail"
	"github.com/psantana5/svclaunch/pkg/shutdown"
)

var (
	logsFollow bool
	logsLines  int
)

var logsCmd = &cobra.Command{
	Use:   "logs [service]",
	Short: "Print or follow a service's log file",
	Long: `Logs prints the last lines of a service's log file. With -f it keeps
following the file across truncation and rotation until interrupted.

Example:
  svclaunch logs photo-service -n 50
  svclaunch logs photo-service -f`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "keep printing appended output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 10, "number of trailing lines to show (0 = whole log)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	sc, err := cfg.Service(serviceArg(args))
	if err != nil {
		return err
	}
	if sc.LogFile == "" {
		return fmt.Errorf("service %s has no log file; exec mode output goes to the container's stdio", sc.Name)
	}

	if logsFollow {
		mgr := shutdown.New(cfg.Stop.Timeout, logger)
		ctx, cancel := mgr.Context(cmd.Context())
		defer cancel()

		err := logtail.Follow(ctx, sc.LogFile, cmd.OutOrStdout(), logtail.Options{Lines: logsLines})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	f, err := os.Open(sc.LogFile)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	var off int64
	if logsLines > 0 {
		if off, err = logtail.LastLinesOffset(f, fi.Size(), logsLines); err != nil {
			return err
		}
	}
	_, err = io.Copy(cmd.OutOrStdout(), io.NewSectionReader(f, off, fi.Size()-off))
	return err
}
