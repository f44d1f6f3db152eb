package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo employers and jobs into an empty store",
	Run: func(_ *cobra.Command, _ []string) {
		runSeed()
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed() {
	ctx := context.Background()
	config, logger := setup()
	defer logger.Sync()

	// newServices seeds on its own when storage.seed-demo is set.
	config.Storage.SeedDemo = false
	svc, err := newServices(ctx, config, logger)
	if err != nil {
		logger.Fatal("starting services", zap.Error(err))
	}
	defer svc.Close()

	n, err := svc.repo.SeedDemo(ctx)
	if err != nil {
		logger.Fatal("seeding demo data", zap.Error(err))
	}
	if n == 0 {
		logger.Info("nothing to do", zap.String("reason", "store already has jobs"))
		return
	}
	logger.Info("seeded demo jobs", zap.Int("count", n), zap.String("storage", config.Storage.Driver))
}
