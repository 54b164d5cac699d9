package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"gchat/core"
	"gchat/setup"
	"gchat/store"
)

func openStore() (store.Store, error) {
	if core.Cfg.RedisURL != "" {
		log.Printf("[STORE] using redis")
		return store.OpenRedis(core.Cfg.RedisURL)
	}
	path := store.DefaultPath(core.Cfg.DataDir)
	log.Printf("[STORE] using %s", path)
	return store.OpenFile(path)
}

func main() {
	if err := setup.InteractiveSetup(); err != nil {
		log.Fatalf("[SETUP] %v", err)
	}
	core.ReloadConfig()

	s, err := openStore()
	if err != nil {
		log.Fatalf("[STORE] open: %v", err)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot, err := core.NewTelegramBot(s)
	if err != nil {
		log.Fatalf("[TG] init: %v", err)
	}
	if err := bot.Start(ctx); err != nil {
		log.Fatalf("[TG] start: %v", err)
	}
	log.Printf("[GCHAT] running (model: %s)", core.Cfg.GeminiModel)

	go func() {
		<-ctx.Done()
		log.Printf("[GCHAT] shutting down")
		bot.Stop()
	}()
	bot.Idle()
}
