package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"WhatsappLinker/internal/telegram"
)

func botCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot front",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.TgApiToken == "" {
				return errors.New("BOT_TOKEN (or tg_api_token in the config file) is not set")
			}
			return telegram.New(cfg, orchestrator).Start()
		},
	}
}
