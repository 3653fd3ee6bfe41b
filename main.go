package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"pizzaria-telegram/bot"
	"pizzaria-telegram/config"
	"pizzaria-telegram/conversation"
	"pizzaria-telegram/db"
	"pizzaria-telegram/health"
	"pizzaria-telegram/logging"
	"pizzaria-telegram/metrics"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pizzaria",
		Short:         "Pizzaria Romeo ordering bot for Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the keep-alive server (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	})
	cmd.AddCommand(migrateCmd(), backupCmd())
	return cmd
}

// loadConfig reads the environment and installs the default logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.Setup(cfg.Log), nil
}

func serve(parent context.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	gw, err := openGateway(ctx, cfg, log, db.WithMetrics(m))
	if err != nil {
		return err
	}
	defer gw.Close()

	engine := conversation.NewEngine(gw, cfg.Delivery.Fee,
		conversation.WithLogger(log),
		conversation.WithMetrics(m),
	)

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if cfg.Telegram.AdminID == 0 {
		log.Warn("ADMIN_ID not set, admin commands disabled")
	}
	b := bot.New(api, gw, engine, cfg.Telegram.AdminID, cfg.Delivery.Fee, bot.WithLogger(log))
	if err := b.SetCommands(); err != nil {
		log.Warn("register bot commands", "err", err)
	}

	hs := health.New(cfg.HTTP.Port, health.Probe{
		Primary:  gw.PrimaryLabel,
		Sessions: engine.ActiveSessions,
	}, m.Registry, log)
	go func() {
		if err := hs.Run(ctx); err != nil {
			log.Error("keep-alive server stopped", "err", err)
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		api.StopReceivingUpdates()
	}()

	log.Info("bot started", "username", api.Self.UserName, "primary", gw.PrimaryLabel())
	b.Run(ctx, updates)
	log.Info("bot stopped")
	return nil
}

// openGateway opens the remote store (when configured) and the local store.
func openGateway(ctx context.Context, cfg *config.Config, log *slog.Logger, opts ...db.Option) (*db.Gateway, error) {
	var remote db.Opener
	if cfg.RemoteEnabled() {
		url := cfg.DB.RemoteURL
		remote = func(ctx context.Context) (db.Backend, error) {
			if cfg.DB.AutoMigrate {
				if err := db.MigratePostgres(ctx, url, nil); err != nil {
					return nil, err
				}
			}
			p, err := db.OpenPostgres(ctx, url)
			if err != nil {
				return nil, err
			}
			return p, nil
		}
	}
	local := func(ctx context.Context) (db.Backend, error) {
		s, err := db.OpenSQLite(ctx, cfg.DB.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	gw, err := db.Open(ctx, remote, local, append([]db.Option{db.WithLogger(log)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return gw, nil
}
