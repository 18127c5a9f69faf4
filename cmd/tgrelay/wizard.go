package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tgrelay/internal/config"

	"github.com/spf13/cobra"
)

func wizardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "Interactive setup: bot token → first route → save config",
		Long:  "Guides you through the Telegram bot token, optional image-host key for avatars, and the first chat-to-webhook route. Writes config to the path used by --config or default.",
		RunE:  runWizard,
	}
}

func runWizard(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		cfg = config.Defaults()
	}

	reader := bufio.NewReader(os.Stdin)
	prompt := func(label, def string) (string, error) {
		if def != "" {
			fmt.Fprintf(os.Stdout, "%s [%s]: ", label, def)
		} else {
			fmt.Fprintf(os.Stdout, "%s: ", label)
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return def, nil
		}
		return line, nil
	}

	fmt.Println("tgrelay setup")
	fmt.Println("-------------")

	// 1. Telegram bot token (from @BotFather).
	token, err := prompt("Telegram bot token", cfg.Telegram.Token)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("a bot token is required; create one with @BotFather")
	}
	cfg.Telegram.Token = token

	// 2. Optional image-host key for avatar enrichment.
	key, err := prompt("ImgBB API key (empty disables avatars)", cfg.ImgBB.Key)
	if err != nil {
		return err
	}
	cfg.ImgBB.Key = key

	// 3. First route. Skipped when a routes file already exists.
	if _, statErr := os.Stat(cfg.General.RoutesPath); os.IsNotExist(statErr) {
		fmt.Println("\nFirst route (find chat ids later with 'tgrelay chats'):")
		chatID, err := prompt("Chat id (or * for all chats)", "*")
		if err != nil {
			return err
		}
		if chatID != "*" {
			if _, err := strconv.ParseInt(chatID, 10, 64); err != nil {
				return fmt.Errorf("chat id must be a number or *: %q", chatID)
			}
		}
		webhook, err := prompt("Webhook URL", "")
		if err != nil {
			return err
		}
		if webhook == "" {
			return fmt.Errorf("a webhook URL is required for the first route")
		}

		if err := os.MkdirAll(filepath.Dir(cfg.General.RoutesPath), 0o755); err != nil {
			return err
		}
		routes := fmt.Sprintf("routes:\n  - chat_id: %q\n    webhooks:\n      - %s\n", chatID, webhook)
		if err := os.WriteFile(cfg.General.RoutesPath, []byte(routes), 0o644); err != nil {
			return err
		}
		fmt.Printf("Routes written: %s\n", cfg.General.RoutesPath)
	} else {
		fmt.Printf("\nKeeping existing routes file: %s\n", cfg.General.RoutesPath)
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}
	fmt.Printf("Config written: %s\n", cfgPath)
	fmt.Println("\nNext: 'tgrelay doctor' to verify, then 'tgrelay run'.")
	return nil
}
