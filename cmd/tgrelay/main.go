package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tgrelay/internal/avatar"
	"tgrelay/internal/bus"
	"tgrelay/internal/config"
	"tgrelay/internal/dispatch"
	"tgrelay/internal/metrics"
	"tgrelay/internal/relay"
	"tgrelay/internal/store"
	"tgrelay/internal/telegram"

	"github.com/spf13/cobra"
)

var (
	version    = "0.3.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "tgrelay",
		Short: "tgrelay: Telegram to webhook message relay",
		Long:  "tgrelay observes Telegram chats and forwards messages to configured webhooks, with link-preview suppression and avatar enrichment.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.tgrelay/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(chatsCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(wizardCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())
	root.AddCommand(installDaemonCmd())
	root.AddCommand(uninstallDaemonCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and routes skeleton",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := config.WriteRoutesSkeleton(cfg.General.RoutesPath); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "routes", cfg.General.RoutesPath)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the relay (Telegram polling + webhook fan-out)",
		Long:  "Polls Telegram for messages and forwards them to the webhooks configured in routes.yaml. Press Ctrl+C to stop.",
		RunE:  runRelay,
	}
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.General.LogLevel),
	}))

	routes, err := config.LoadRoutes(cfg.General.RoutesPath)
	if err != nil {
		return fmt.Errorf("load routes: %w", err)
	}
	logger.Info("routes loaded", "path", cfg.General.RoutesPath, "count", len(routes))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventBus := bus.New(cfg.General.BusBuffer, logger)
	defer eventBus.Close()

	relayLog, err := store.NewSQLiteStore(cfg.General.DBPath, logger)
	if err != nil {
		return fmt.Errorf("relay log: %w", err)
	}
	defer relayLog.Close()

	collector := metrics.NewCollector()
	if cfg.Metrics.Enabled {
		go func() {
			if err := collector.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("metrics server error", "err", err)
			}
		}()
	}

	// Avatar enrichment only when an image-host key is configured.
	var avatarResolver relay.AvatarResolver
	withPhotos := cfg.ImgBB.Key != ""
	if withPhotos {
		cache, err := avatar.OpenCache(ctx, cfg.General.CachePath, stdinConfirm, logger)
		if err != nil {
			return fmt.Errorf("avatar cache: %w", err)
		}
		host := avatar.NewHostClient(avatar.HostConfig{
			BaseURL:    cfg.ImgBB.BaseURL,
			UploadURL:  cfg.ImgBB.UploadURL,
			Key:        cfg.ImgBB.Key,
			Expiration: cfg.ImgBB.ExpirationSeconds,
		})
		avatarResolver = avatar.NewResolver(cache, host, logger)
		logger.Info("avatar enrichment enabled", "cache", cfg.General.CachePath)
	} else {
		logger.Info("avatar enrichment disabled (no image host key)")
	}

	rel := relay.New(relay.Config{
		Routes:             routes,
		Avatar:             avatarResolver,
		Dispatcher:         dispatch.New(dispatch.Config{Logger: logger}),
		Log:                relayLog,
		Metrics:            collector,
		MaxAttachmentBytes: cfg.Telegram.MaxAttachmentBytes,
		Logger:             logger,
	})
	go rel.Run(ctx, eventBus)

	source := telegram.NewSource(telegram.SourceConfig{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeoutSeconds,
		WithPhotos:  withPhotos,
		Logger:      logger,
	})
	go func() {
		if err := source.Start(ctx, eventBus); err != nil {
			logger.Error("telegram source error", "err", err)
			stop()
		}
	}()

	logger.Info("relay started. Press Ctrl+C to stop.", "version", version)

	<-ctx.Done()
	logger.Info("shutting down relay...")

	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		eventBus.Close()
		relayLog.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}

func chatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "chats",
		Aliases: []string{"list"},
		Short:   "List chats with recent activity (for routes.yaml)",
		Long:    "Connects to Telegram and drains the pending update backlog, printing the distinct chat ids observed. Only chats with recent messages appear.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			source := telegram.NewSource(telegram.SourceConfig{
				Token:       cfg.Telegram.Token,
				PollTimeout: cfg.Telegram.PollTimeoutSeconds,
				Logger:      logger,
			})
			chats, err := source.ListChats(ctx)
			if err != nil {
				return err
			}
			if len(chats) == 0 {
				fmt.Println("No chats observed. Send a message to the bot (or a chat it is in) and retry.")
				return nil
			}
			for _, chat := range chats {
				fmt.Printf("%12d  %-10s %s\n", chat.ID, chat.Type, chat.Title)
			}
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently relayed messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			relayLog, err := store.NewSQLiteStore(cfg.General.DBPath, logger)
			if err != nil {
				return fmt.Errorf("relay log: %w", err)
			}
			defer relayLog.Close()

			recs, err := relayLog.RecentRelays(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Println("No relayed messages yet.")
				return nil
			}
			for _, rec := range recs {
				sender := rec.Sender
				if sender == "" {
					sender = "-"
				}
				fmt.Printf("%s  %-24s @%-16s ok=%d fail=%d\n",
					rec.CreatedAt.Format("2006-01-02 15:04:05"),
					rec.ChatTitle, sender, rec.Succeeded, rec.Failed)
				for _, o := range rec.Outcomes {
					mark := "ok"
					if !o.OK {
						mark = "FAIL"
					}
					fmt.Printf("    [%s] %d %s\n", mark, o.StatusCode, o.Target)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. telegram.pollTimeoutSeconds)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. general.logLevel debug)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, _ := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

// stdinConfirm asks a yes/no question on the terminal. Used when the avatar
// cache file cannot be parsed.
func stdinConfirm(ctx context.Context, question string) (bool, error) {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, question)
	fmt.Fprint(os.Stderr, "Type 'yes' to allow: ")
	var response string
	fmt.Scanln(&response)
	return response == "yes" || response == "y", nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
