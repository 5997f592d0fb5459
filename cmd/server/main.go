package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/vaxsync/internal/server"
	"github.com/dmitrijs2005/vaxsync/internal/server/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg := config.LoadConfig()
	if err := server.NewRootCommand(cfg).ExecuteContext(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
