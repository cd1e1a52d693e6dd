package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
	"github.com/bumpwatch/bumpwatch/server/internal/api"
	"github.com/bumpwatch/bumpwatch/server/internal/export"
	"github.com/bumpwatch/bumpwatch/server/internal/refresh"
)

func listCmd(a *app) *cobra.Command {
	var filter bump.Filter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List speed bumps, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.client().List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return a.printList(l)
		},
	}
	filterFlag(cmd.Flags(), &filter)
	return cmd
}

func getCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one speed bump with its maintenance hints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.client().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printBump(b)
		},
	}
}

func updateCmd(a *app) *cobra.Command {
	var (
		health int
		status string
	)
	cmd := &cobra.Command{
		Use:   "update ID (--health N | --status S)",
		Short: "Set a bump's health or status",
		Example: `  bumpctl update 3 --health 8500
  bumpctl update 3 --status Damaged`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req api.UpdateRequest
			if cmd.Flags().Changed("health") {
				req.Health = &health
			}
			if cmd.Flags().Changed("status") {
				req.Status = &status
			}
			// Reject locally with the same rules the server applies.
			c, err := req.Condition()
			if err != nil {
				return err
			}
			if err := c.Validate(); err != nil {
				return err
			}
			b, err := a.client().Update(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			return a.printBump(b)
		},
	}
	cmd.Flags().IntVar(&health, "health", 0, "new health, 0 to 10000")
	cmd.Flags().StringVar(&status, "status", "", "new status: Good, Damaged or Critical")
	cmd.MarkFlagsMutuallyExclusive("health", "status")
	cmd.MarkFlagsOneRequired("health", "status")
	return cmd
}

func summaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Count speed bumps by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.client().Summary(cmd.Context())
			if err != nil {
				return err
			}
			return a.printSummary(s)
		},
	}
}

func previewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preview HEALTH",
		Short: "Show the status a health value maps to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("health %q is not a whole number", args[0])
			}
			p, err := a.client().Preview(cmd.Context(), h)
			if err != nil {
				return err
			}
			if a.cfg.Output == "json" {
				return a.printJSON(p)
			}
			fmt.Fprintf(a.stdout, "%d (%.0f%%) %s\n", p.Health, p.HealthPct, p.Status)
			return nil
		},
	}
}

func watchCmd(a *app) *cobra.Command {
	var (
		filter   bump.Filter
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-list speed bumps on an interval until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			c := a.client()
			p := refresh.New(interval, func(ctx context.Context) (api.ListResponse, error) {
				return c.List(ctx, filter)
			}, a.deliverWatch)
			p.Run(ctx)
			return nil
		},
	}
	filterFlag(cmd.Flags(), &filter)
	cmd.Flags().DurationVar(&interval, "interval", refresh.DefaultInterval, "refresh interval")
	return cmd
}

// deliverWatch prints one poll result. Errors are shown and the next tick
// retries.
func (a *app) deliverWatch(r refresh.Result[api.ListResponse]) {
	stamp := r.At.Local().Format(time.TimeOnly)
	if r.Err != nil {
		fmt.Fprintf(a.stderr, "[%s] refresh failed: %v\n", stamp, r.Err)
		return
	}
	fmt.Fprintf(a.stdout, "[%s] %s (%d)\n", stamp, r.Value.Filter.Label(), r.Value.Count)
	if err := a.printList(r.Value); err != nil {
		fmt.Fprintf(a.stderr, "print: %v\n", err)
	}
}

func exportCmd(a *app) *cobra.Command {
	var (
		filter bump.Filter
		format string
		region string
	)
	cmd := &cobra.Command{
		Use:   "export DEST",
		Short: "Write the current list to a file or an s3://bucket/key object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := export.ParseDestination(args[0])
			if err != nil {
				return err
			}
			l, err := a.client().List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			data, contentType, err := export.Encode(l, format)
			if err != nil {
				return err
			}
			if err := export.Save(cmd.Context(), dest, data, export.Options{Region: region, ContentType: contentType}); err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "exported %d bumps to %s\n", l.Count, dest)
			return nil
		},
	}
	filterFlag(cmd.Flags(), &filter)
	cmd.Flags().StringVar(&format, "format", export.FormatJSON, "json or csv")
	cmd.Flags().StringVar(&region, "region", "", "AWS region for s3:// destinations")
	return cmd
}
