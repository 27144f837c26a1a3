package main

import (
	"os"

	"WhatsappLinker/cmd/app/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
