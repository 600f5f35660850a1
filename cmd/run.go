package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/harvester/internal/app"
	"github.com/JakeFAU/harvester/internal/config"
	"github.com/JakeFAU/harvester/internal/dispatcher"
	"github.com/JakeFAU/harvester/internal/logging"
)

const closeTimeout = 15 * time.Second

// flagBindings maps config keys to flag names.
var flagBindings = map[string]string{
	"mode":                     "mode",
	"crawler.keywords":         "keywords",
	"crawler.targets":          "targets",
	"crawler.max_items":        "max-items",
	"crawler.concurrency":      "concurrency",
	"crawler.comments_enabled": "comments",
	"crawler.start_page":       "start-page",
	"storage.backend":          "storage",
	"headless.enabled":         "headless",
	"server.enabled":           "serve",
	"server.port":              "port",
	"logging.level":            "log-level",
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one harvest mode",
		Example: `  harvester run --mode search --keywords golang,rust --max-items 100
  harvester run --mode detail --targets https://www.zhihu.com/question/1/answer/2
  harvester run --mode question --headless --targets https://www.zhihu.com/question/1`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			for key, name := range flagBindings {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
					return fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("read config flag: %w", err)
			}
			return runHarvest(cmd.Context(), path, v)
		},
	}

	flags := cmd.Flags()
	flags.String("mode", "search", "run mode: search, detail, creator or question")
	flags.StringSlice("keywords", nil, "search keywords (search mode)")
	flags.StringSlice("targets", nil, "content, creator or question URLs")
	flags.Int("max-items", 200, "item budget for the run")
	flags.Int("concurrency", 4, "maximum concurrent fetches")
	flags.Bool("comments", true, "harvest comments of stored items")
	flags.Int("start-page", 1, "first search page")
	flags.String("storage", config.BackendMemory, "storage backend: memory, postgres, sqlite, local or gcs")
	flags.Bool("headless", false, "start the browser render surface")
	flags.Bool("serve", false, "expose the ops HTTP server during the run")
	flags.Int("port", 8080, "ops HTTP server port")
	flags.String("log-level", "info", "log level")
	return cmd
}

func runHarvest(parent context.Context, path string, v *viper.Viper) error {
	cfg, err := config.Load(path, v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	harvest, err := app.New(ctx, cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("init harvester: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if cerr := harvest.Close(closeCtx); cerr != nil {
			logger.Warn("shutdown incomplete", zap.Error(cerr))
		}
	}()

	sum, err := harvest.Run(ctx)
	logSummary(logger, sum)
	if errors.Is(err, context.Canceled) {
		logger.Info("harvest interrupted; partial results kept")
		return nil
	}
	if err != nil {
		return fmt.Errorf("run harvest: %w", err)
	}
	return nil
}

func logSummary(logger *zap.Logger, sum dispatcher.Summary) {
	fields := []zap.Field{
		zap.String("mode", string(sum.Mode)),
		zap.Int("items", sum.Items),
		zap.Int("comments", sum.Comments),
		zap.Int("references", sum.References),
		zap.Int("creators", sum.Creators),
		zap.Int("topics", sum.Topics),
		zap.Duration("duration", sum.Duration),
	}
	for _, kw := range sum.Keywords {
		fields = append(fields, zap.String("keyword."+kw.Keyword, fmt.Sprintf("%s pages=%d items=%d", kw.State, kw.Pages, kw.Items)))
	}
	logger.Info("harvest finished", fields...)
}
