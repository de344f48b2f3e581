package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ctf-notify-bot/internal/clock"
	"ctf-notify-bot/internal/config"
	"ctf-notify-bot/internal/ctftime"
	"ctf-notify-bot/internal/scheduler"
	"ctf-notify-bot/internal/server"
	"ctf-notify-bot/internal/sheets"
	"ctf-notify-bot/internal/tgbot"
	"ctf-notify-bot/internal/tracker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := sheets.New(cfg.GoogleServiceAccountJSON, cfg.SpreadsheetID)
	if err != nil {
		log.Fatalf("sheets: %v", err)
	}

	botApp, err := tgbot.New(cfg)
	if err != nil {
		log.Fatalf("telegram: %v", err)
	}

	clk := clock.NewSystem()
	listing := ctftime.New(cfg.CTFTimeAPIURL)

	sched := scheduler.New(store, botApp, listing, clk, cfg.NotifyChatID)
	tr := tracker.New(store, botApp, clk, nil)
	botApp.Attach(tr, listing)

	// Rebuild state persisted by the previous process.
	sched.ReconcileOnStartup()
	tr.RestoreAll()

	httpSrv := server.New(cfg, sched, tr)

	go func() {
		log.Printf("HTTP listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())

	go sched.Run(ctx)

	go func() {
		if err := botApp.Run(ctx); err != nil {
			log.Printf("bot stopped: %v", err)
			cancel()
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	cancel()
	ctxTimeout, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = httpSrv.Shutdown(ctxTimeout)

	log.Println("bye")
}
