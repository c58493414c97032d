package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mailpilot/internal/app"
	"mailpilot/internal/cache"
	"mailpilot/internal/model"
	"mailpilot/internal/pipeline"
	"mailpilot/pkg/config"
	"mailpilot/pkg/db"
	"mailpilot/pkg/logger"
	"mailpilot/pkg/mq"
	"mailpilot/pkg/outbox"
	"mailpilot/pkg/redis"
)

var (
	envFlag       string
	configDirFlag string
	debugFlag     bool

	userFlag   string
	maxFlag    int
	fileFlag   string
	notifyFlag bool
	limitFlag  int
)

var rootCmd = &cobra.Command{
	Use:           "mailpilot",
	Short:         "mailpilot - email enrichment pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch, enrich and store new mail for one user",
	RunE:  runSync,
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Enrich emails from a JSON file (one object or an array)",
	RunE:  runProcess,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the enrichment cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached enrichment",
	RunE:  runCacheClear,
}

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Manage queued notification events",
}

var outboxReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Republish failed outbox events",
	RunE:  runOutboxReplay,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFlag, "env", config.GetConfigEnv(), "Config environment (base.yaml + <env>.yaml)")
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", config.GetEnv("CONFIG_DIR", "config"), "Config directory")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Development logging")

	syncCmd.Flags().StringVarP(&userFlag, "user", "u", "", "User id or email")
	syncCmd.Flags().IntVar(&maxFlag, "max", 0, "Maximum messages to fetch (default mail.max_results)")
	_ = syncCmd.MarkFlagRequired("user")

	processCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "JSON file with emails, - for stdin")
	processCmd.Flags().BoolVar(&notifyFlag, "notify", false, "Send notifications")
	_ = processCmd.MarkFlagRequired("file")

	outboxReplayCmd.Flags().IntVar(&limitFlag, "limit", 100, "Maximum events to replay")

	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	outboxCmd.AddCommand(outboxReplayCmd)
	rootCmd.AddCommand(migrateCmd, syncCmd, processCmd, cacheCmd, outboxCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFlag, configDirFlag)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.NewLogger(debugFlag), nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	pool, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(cmd.Context(), pool); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
	return nil
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	user, err := lookupUser(ctx, a, userFlag)
	if err != nil {
		return err
	}
	id, err := a.Auth.Identity(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}

	max := maxFlag
	if max <= 0 {
		max = cfg.Mail.MaxResults
	}
	report, err := a.Sync.Sync(ctx, id, max)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), report)
}

func lookupUser(ctx context.Context, a *app.App, ref string) (*model.User, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return a.Users.GetByID(ctx, id)
	}
	return a.Users.GetByEmail(ctx, ref)
}

func runProcess(cmd *cobra.Command, _ []string) error {
	var (
		data []byte
		err  error
	)
	if fileFlag == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(fileFlag)
	}
	if err != nil {
		return err
	}
	emails, err := parseEmails(data)
	if err != nil {
		return err
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	items := a.Enricher.ProcessAll(cmd.Context(), emails, pipeline.Options{Notify: notifyFlag}, cfg.Pipeline.BatchConcurrency)
	return writeJSON(cmd.OutOrStdout(), items)
}

// parseEmails accepts either a single email object or an array of them.
func parseEmails(data []byte) ([]model.RawEmail, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("no emails in input")
	}
	if data[0] == '[' {
		var emails []model.RawEmail
		if err := json.Unmarshal(data, &emails); err != nil {
			return nil, fmt.Errorf("decode emails: %w", err)
		}
		return emails, nil
	}
	var email model.RawEmail
	if err := json.Unmarshal(data, &email); err != nil {
		return nil, fmt.Errorf("decode email: %w", err)
	}
	return []model.RawEmail{email}, nil
}

func openCache() (*cache.RedisStore, func(), *zap.Logger, error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, nil, nil, err
	}
	rdb := redis.NewRedisClient(cfg.Redis)
	return cache.NewRedisStore(rdb, cfg.Pipeline.CachePrefix, log), func() { _ = rdb.Close() }, log, nil
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	store, closeFn, log, err := openCache()
	if err != nil {
		return err
	}
	defer closeFn()
	defer log.Sync()

	return writeJSON(cmd.OutOrStdout(), store.Stats(cmd.Context()))
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	store, closeFn, log, err := openCache()
	if err != nil {
		return err
	}
	defer closeFn()
	defer log.Sync()

	if !store.FlushAll(cmd.Context()) {
		return errors.New("cache unavailable")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
	return nil
}

func runOutboxReplay(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	pool, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		return err
	}
	defer publisher.Close()

	n, err := outbox.NewReplayService(outbox.NewRepository(pool), publisher, log).ReplayFailedEvents(cmd.Context(), limitFlag)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "replayed %d event(s)\n", n)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
