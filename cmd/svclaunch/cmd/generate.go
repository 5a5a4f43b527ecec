package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/psantana5/svclaunch/internal/codegen"
	"github.com/psantana5/svclaunch/internal/config"
	"github.com/psantana5/svclaunch/internal/report"
	"github.com/psantana5/svclaunch/pkg/logging"
	"github.com/psantana5/svclaunch/pkg/tracing"
)

var generateForce bool

var generateCmd = &cobra.Command{
	Use:   "generate [service]",
	Short: "Generate a service's sources unless they already exist",
	Long: `Generate runs the service's generator command when its marker file is
missing. Existence of the marker is the only check; use --force to regenerate.

Example:
  svclaunch generate photo-of-day-service
  svclaunch generate photo-of-day-service --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().BoolVar(&generateForce, "force", false, "run the generator even if the marker exists")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	sc, err := cfg.Service(serviceArg(args))
	if err != nil {
		return err
	}

	outcome, err := ensureGenerated(cmd.Context(), sc, generateForce)
	if err != nil {
		return err
	}
	if outcome == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s has no generate step\n", sc.Name)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s sources %s\n", sc.Name, outcome)
	return nil
}

// ensureGenerated runs the service's generate step, if any, inside a span.
// The tracer is flushed before returning because exec never comes back.
func ensureGenerated(ctx context.Context, sc config.ServiceConfig, force bool) (codegen.Outcome, error) {
	g := sc.Generator()
	if g == nil {
		return "", nil
	}
	g.Force = force
	g.Logger = logger.WithField("service", sc.Name)

	tp, err := newTracer(ctx)
	if err != nil {
		return "", err
	}
	defer tp.Shutdown(context.Background())

	ctx, span := tp.StartSpan(ctx, "codegen.ensure_generated_sources",
		attribute.String("service", sc.Name), attribute.String("marker", g.MarkerPath()))
	outcome, err := g.Ensure(ctx)
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	tracing.End(span, err)

	recordGenerate(sc.Name, outcome, err)
	return outcome, err
}

// recordGenerate updates the textfile metrics when one is configured.
// Nothing else outlives a generate or exec run to scrape them.
func recordGenerate(service string, outcome codegen.Outcome, err error) {
	if cfg.Metrics.Textfile == "" {
		return
	}
	m := report.NewMetrics()
	switch {
	case err != nil:
		m.Generate(service, report.OutcomeFailed)
	case outcome == codegen.Generated:
		m.Generate(service, report.OutcomeGenerated)
	default:
		m.Generate(service, report.OutcomeSkipped)
	}
	if werr := m.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
		logger.Warn("Failed to write metrics textfile", logging.Fields{"path": cfg.Metrics.Textfile, "error": werr.Error()})
	}
}
