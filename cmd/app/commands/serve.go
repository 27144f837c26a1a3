package commands

import (
	"github.com/spf13/cobra"

	"WhatsappLinker/internal/web"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP front",
		RunE: func(cmd *cobra.Command, args []string) error {
			return web.New(cfg, orchestrator).Run()
		},
	}
}
