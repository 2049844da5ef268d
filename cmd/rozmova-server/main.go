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

	"github.com/HolkerDev/rozmova-server/internal/backup"
	"github.com/HolkerDev/rozmova-server/internal/billing"
	"github.com/HolkerDev/rozmova-server/internal/chat"
	"github.com/HolkerDev/rozmova-server/internal/config"
	"github.com/HolkerDev/rozmova-server/internal/llm"
	"github.com/HolkerDev/rozmova-server/internal/partner"
	"github.com/HolkerDev/rozmova-server/internal/review"
	"github.com/HolkerDev/rozmova-server/internal/server"
	"github.com/HolkerDev/rozmova-server/internal/settings"
	"github.com/HolkerDev/rozmova-server/internal/storage"
	"github.com/HolkerDev/rozmova-server/internal/transcribe"
)

func main() {
	log.Println("rozmova-server: starting")

	_ = godotenv.Load()

	configPath := os.Getenv(config.EnvPrefix + "CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	hub := server.NewHub()
	prefs := settings.NewService(store, hub)

	// Warm sampling for conversation, cold for grading.
	partnerClient, err := newLLMClient(&cfg, cfg.PartnerModel, llm.WithTemperature(0.7))
	if err != nil {
		log.Fatalf("partner model init failed: %v", err)
	}
	conversationPartner := partner.New(partnerClient, cfg.MaxTurns)

	reviewClient, err := newLLMClient(&cfg, cfg.ReviewModel, llm.WithTemperature(0.2))
	if err != nil {
		log.Fatalf("review model init failed: %v", err)
	}
	reviewer := review.NewGenerator(reviewClient)

	var transcriber chat.Transcriber
	if cfg.DeepgramAPIKey != "" {
		transcriber = transcribe.NewDeepgram(cfg.DeepgramAPIKey, cfg.TranscribeModel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var audioBackup chat.Backup
	if cfg.GDriveFolderID != "" && cfg.GoogleCredentialsFile != "" {
		drive, driveErr := backup.NewDrive(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if driveErr != nil {
			log.Printf("warning: audio backup disabled: %v", driveErr)
		} else {
			audioBackup = drive
		}
	}

	chatSvc := chat.NewService(store, conversationPartner, transcriber, reviewer, hub, prefs, audioBackup)

	products := make([]billing.Product, 0, len(cfg.Products))
	for _, p := range cfg.Products {
		products = append(products, billing.Product{ID: p.ID, Title: p.Title})
	}
	bills := billing.NewService(store, nil, hub, products)

	handler := server.Handler(hub, chatSvc, store, prefs, bills, cfg.AudioDir)
	httpServer := &http.Server{Addr: cfg.Addr, Handler: handler}

	go func() {
		log.Printf("rozmova-server: api on http://%s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("rozmova-server: shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
}

func newLLMClient(cfg *config.Config, model string, opts ...llm.Option) (llm.Client, error) {
	provider, modelName, err := llm.ParseModel(model)
	if err != nil {
		return nil, err
	}
	return llm.NewClient(provider, cfg.KeyForProvider(provider), modelName, opts...)
}
