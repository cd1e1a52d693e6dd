package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jaswdr/faker"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
	"github.com/bumpwatch/bumpwatch/server/internal/config"
	"github.com/bumpwatch/bumpwatch/server/internal/store"
)

func seedCmd(a *app) *cobra.Command {
	var (
		serverConfig string
		count        int
		demo         bool
		batch        int
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert generated speed bumps straight into the server's store",
		Long: `seed opens the record store named in a server config file and inserts
records that are not present yet. With --demo it inserts the fixed demo data
set; otherwise it generates --count random bumps.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(serverConfig)
			if err != nil {
				return err
			}
			for _, p := range cfg.Server.Store.Problems() {
				slog.Warn("configuration error", "err", p)
			}
			opts := cfg.Server.Store.StoreOptions()
			if opts.Backend == "" || opts.Backend == store.BackendMemory {
				return fmt.Errorf("store backend %q does not persist; seed needs sqlite or postgres", cfg.Server.Store.Backend)
			}
			opts.SeedDemo = false
			repo, err := store.Open(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer repo.Close()

			mode := cfg.Server.Store.Condition
			var recs []bump.Record
			if demo {
				recs = bump.DemoRecords(time.Now().UTC(), mode)
			} else {
				recs = generateRecords(faker.New(), count, mode, time.Now().UTC())
			}
			added, err := insertAll(cmd.Context(), repo, recs, batch, a.stderr)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "inserted %d of %d records\n", added, len(recs))
			return nil
		},
	}
	cmd.Flags().StringVar(&serverConfig, "server-config", "config.yaml", "bumpwatch-server config file naming the store")
	cmd.Flags().IntVarP(&count, "count", "n", 25, "number of random bumps to generate")
	cmd.Flags().BoolVar(&demo, "demo", false, "insert the demo data set instead of random bumps")
	cmd.Flags().IntVar(&batch, "batch", 10, "records per insert")
	return cmd
}

// generateRecords builds n random records whose condition matches mode.
func generateRecords(fake faker.Faker, n int, mode bump.Mode, now time.Time) []bump.Record {
	recs := make([]bump.Record, 0, n)
	for i := 0; i < n; i++ {
		health := fake.IntBetween(bump.MinHealth, bump.MaxHealth)
		c := bump.HealthCondition(health)
		if mode == bump.ModeStatus {
			c = bump.StatusCondition(bump.DeriveStatus(float64(health)))
		}
		addr := fake.Address()
		recs = append(recs, bump.Record{
			ID:            uuid.NewString(),
			StreetName:    addr.StreetName(),
			ExactLocation: fmt.Sprintf("In front of %s, %s", addr.StreetAddress(), addr.City()),
			Condition:     c,
			CarCount:      int64(fake.IntBetween(0, 120000)),
			LastUpdated:   now.Add(-time.Duration(fake.IntBetween(0, 60*24)) * time.Hour),
		})
	}
	return recs
}

// insertAll writes recs in batches, reporting progress on w.
func insertAll(ctx context.Context, repo store.Repository, recs []bump.Record, batch int, w io.Writer) (int, error) {
	if batch <= 0 {
		batch = len(recs)
	}
	bar := progressbar.NewOptions(len(recs),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("seeding"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	added := 0
	for start := 0; start < len(recs); start += batch {
		end := min(start+batch, len(recs))
		n, err := repo.Insert(ctx, recs[start:end]...)
		added += n
		if err != nil {
			return added, fmt.Errorf("insert records %d-%d: %w", start, end-1, err)
		}
		_ = bar.Add(end - start)
	}
	_ = bar.Finish()
	return added, nil
}
