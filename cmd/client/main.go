package main

import (
	"flag"
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenggwsx/roomchat/internal/client"
	"github.com/fenggwsx/roomchat/internal/config"
	"github.com/fenggwsx/roomchat/internal/secrets"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file with client settings")
	flag.Parse()

	provider, err := secrets.NewEnvProvider(*envFile)
	if err != nil {
		log.Fatalf("read %s: %v", *envFile, err)
	}
	cfg := config.LoadClientConfig(provider)
	model := client.NewApp(cfg)

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		log.Fatalf("client exited: %v", err)
	}
}
