// Package commands wires the CLI: a persistent Telegram bot, an HTTP
// front, and a one-shot pairing run.
package commands

import (
	"github.com/spf13/cobra"
	waLog "go.mau.fi/whatsmeow/util/log"

	"WhatsappLinker/internal/pairing"
	"WhatsappLinker/internal/sessionstore"
	"WhatsappLinker/pkg/config"
)

var (
	configPath string

	cfg          *config.Config
	store        sessionstore.Store
	orchestrator *pairing.Orchestrator
)

func Execute() error {
	root := &cobra.Command{
		Use:          "app",
		Short:        "Pair WhatsApp accounts and export their sessions",
		SilenceUsage: true,
	}
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.New(configPath)
		if err != nil {
			return err
		}
		store, err = openStore(cfg)
		if err != nil {
			return err
		}
		clientLog := waLog.Noop
		if cfg.Debug {
			clientLog = waLog.Stdout("Client", "DEBUG", true)
		}
		orchestrator = pairing.New(cfg.SessionsDir, cfg.PairTimeout(), store, clientLog)
		return nil
	}

	root.PersistentFlags().StringVar(&configPath, "config", "config.yml", "path to the yaml config file")

	root.AddCommand(botCmd(), serveCmd(), pairCmd())
	return root.Execute()
}

func openStore(c *config.Config) (sessionstore.Store, error) {
	if c.RedisAddr != "" {
		return sessionstore.NewRedisStore(c.RedisAddr, c.RedisUsername, c.RedisPassword)
	}
	return sessionstore.NewSQLiteStore(c.DatabasePath)
}
