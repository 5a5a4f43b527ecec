package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/psantana5/svclaunch/cmd/svclaunch/cmd"
	"github.com/psantana5/svclaunch/pkg/shutdown"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var sigErr *shutdown.SignalError
		if errors.As(err, &sigErr) {
			os.Exit(sigErr.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
