package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/rs/zerolog"

	"github.com/fenggwsx/roomchat/internal/auth"
	"github.com/fenggwsx/roomchat/internal/config"
	"github.com/fenggwsx/roomchat/internal/logging"
	"github.com/fenggwsx/roomchat/internal/secrets"
	"github.com/fenggwsx/roomchat/internal/server"
	"github.com/fenggwsx/roomchat/internal/storage/sqlite"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file with configuration and secrets")
	hashPassword := flag.String("hash-password", "", "print a bcrypt hash for "+config.KeyOperatorPassword+" and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	provider, err := secrets.NewEnvProvider(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *envFile, err)
		os.Exit(1)
	}
	cfg, err := config.LoadServerConfig(provider)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	os.Exit(run(cfg, log))
}

func run(cfg config.ServerConfig, log zerolog.Logger) int {
	store, err := sqlite.NewStore(cfg.Database)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.Database.Path).Msg("init storage")
		return 1
	}

	app := server.NewApp(cfg, store, log)
	if err := app.Start(context.Background()); err != nil {
		log.Error().Err(err).Msg("start server")
		_ = store.Close()
		return 1
	}

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"server": func(ctx context.Context) error {
				log.Info().Msg("graceful shutdown initiated")
				if err := app.Stop(ctx); err != nil {
					return err
				}
				return store.Close()
			},
		},
	)

	exitCode := <-wait
	log.Info().Int("code", exitCode).Msg("server exited")
	return exitCode
}
