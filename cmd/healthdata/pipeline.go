package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	healthcommand "github.com/goliatone/go-healthdata/command"
	"github.com/goliatone/go-healthdata/pipeline"
)

func newPipelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run the derived data pipeline",
	}
	cmd.AddCommand(newPipelineRunCmd())
	cmd.AddCommand(newPipelineScheduleCmd())
	return cmd
}

func newPipelineRunCmd() *cobra.Command {
	var startFlag, endFlag string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every processing unit once",
		Long: `Run every configured processing unit over a window. Dates are
ISO dates (2024-03-01) or RFC 3339 timestamps. A bare end date covers
the whole day. Without flags the previous day is processed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				start, end, err := parseWindow(startFlag, endFlag, rt.location)
				if err != nil {
					return err
				}
				bus, err := rt.dispatcher()
				if err != nil {
					return err
				}

				collector := gocmd.NewResult[pipeline.RunReport]()
				ctx = gocmd.ContextWithResult(ctx, collector)
				msg := healthcommand.RunPipelineMessage{Start: start, End: end}
				if err := msg.Validate(); err != nil {
					return err
				}
				if err := bus.RunPipeline(ctx, msg); err != nil {
					return err
				}
				report, _ := collector.Load()
				printReport(cmd.OutOrStdout(), report)
				if len(report.Failed) > 0 {
					return fmt.Errorf("%d pipeline unit(s) failed", len(report.Failed))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&startFlag, "start", "", "window start (ISO date or RFC 3339)")
	cmd.Flags().StringVar(&endFlag, "end", "", "window end (ISO date or RFC 3339)")
	return cmd
}

func newPipelineScheduleCmd() *cobra.Command {
	var scheduleFlag, metricsAddr string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline daily until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				runner, err := rt.pipelineRunner()
				if err != nil {
					return err
				}
				spec := scheduleFlag
				if strings.TrimSpace(spec) == "" {
					spec = rt.service.Config().Pipeline.Schedule
				}
				scheduler, err := pipeline.NewScheduler(runner, spec, rt.location, rt.logger)
				if err != nil {
					return err
				}

				var server *http.Server
				if strings.TrimSpace(metricsAddr) != "" {
					mux := http.NewServeMux()
					mux.Handle("/metrics", promhttp.HandlerFor(rt.metrics, promhttp.HandlerOpts{}))
					server = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
					go func() {
						if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
							rt.logger.Error("metrics server failed", "addr", metricsAddr, "error", err)
						}
					}()
					rt.logger.Info("metrics server listening", "addr", metricsAddr)
				}

				if err := scheduler.Start(); err != nil {
					return err
				}
				rt.logger.Info("next pipeline run", "at", scheduler.Next())
				<-ctx.Done()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if server != nil {
					_ = server.Shutdown(shutdownCtx)
				}
				return scheduler.Stop(shutdownCtx)
			})
		},
	}
	cmd.Flags().StringVar(&scheduleFlag, "schedule", "", "cron spec with seconds field (defaults to pipeline.schedule)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

// parseWindow turns the --start/--end flags into a window. Both empty means
// the previous day, handled by the run command.
func parseWindow(startRaw string, endRaw string, loc *time.Location) (time.Time, time.Time, error) {
	startRaw, endRaw = strings.TrimSpace(startRaw), strings.TrimSpace(endRaw)
	if startRaw == "" && endRaw == "" {
		return time.Time{}, time.Time{}, nil
	}
	if startRaw == "" || endRaw == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--start and --end must be set together")
	}
	start, err := parseBound(startRaw, loc, false)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --start: %w", err)
	}
	end, err := parseBound(endRaw, loc, true)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --end: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--end must not be before --start")
	}
	return start, end, nil
}

func parseBound(value string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if day, err := time.ParseInLocation(time.DateOnly, value, loc); err == nil {
		start, end := pipeline.DayWindow(day, loc)
		if endOfDay {
			return end, nil
		}
		return start, nil
	}
	return pipeline.ParseTimestamp(value)
}

func printReport(out io.Writer, report pipeline.RunReport) {
	fmt.Fprintf(out, "window: %s .. %s\n", report.Start.Format(time.RFC3339), report.End.Format(time.RFC3339))
	for _, unit := range report.Succeeded {
		fmt.Fprintf(out, "ok     %s\n", unit)
	}
	for _, failure := range report.Failed {
		fmt.Fprintf(out, "failed %s: %v\n", failure.Unit, failure.Err)
	}
}
