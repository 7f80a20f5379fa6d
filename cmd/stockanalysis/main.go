package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"stock-analysis/internal/cli"
)

func main() {
	// A missing .env is fine; the config file and flags still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.NewApp()
	err := cli.NewRootCmd(app).ExecuteContext(ctx)
	// PersistentPostRunE is skipped when a command fails.
	_ = app.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
