package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/parent-coach/backend/internal/config"
	"github.com/zhouzirui/parent-coach/backend/internal/handler"
	"github.com/zhouzirui/parent-coach/backend/internal/middleware"
	"github.com/zhouzirui/parent-coach/backend/internal/model/profile"
	"github.com/zhouzirui/parent-coach/backend/internal/service/ai"
	"github.com/zhouzirui/parent-coach/backend/internal/service/chat"
	"github.com/zhouzirui/parent-coach/backend/internal/service/speech"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	provider := ai.New(ctx, cfg.AI)
	log.Printf("AI backend selected: %s (speech=%v)", provider.Backend(), provider.SupportsSpeech())

	chatService := chat.NewService(profile.NewMemoryStore(), provider)

	var narrator speech.Narrator
	if cfg.Speech.NativeEnabled && !provider.SupportsSpeech() {
		native, err := speech.NewNativeNarrator(cfg.Speech.NativeCommand)
		if err != nil {
			log.Printf("warning: native narration unavailable: %v", err)
		} else {
			narrator = native
			log.Println("native narration enabled as speech fallback")
		}
	}

	speechService := speech.NewService(provider, narrator)
	chatService.SetSpeechAvailable(speechService.Available())
	if !speechService.Available() {
		log.Println("语音朗读不可用，仅提供文字对话")
	}

	origins, err := middleware.NewOriginPolicy(cfg.Server.AllowedOrigins)
	if err != nil {
		log.Fatalf("invalid ALLOWED_ORIGINS: %v", err)
	}

	router := handler.NewRouter(cfg.AI, origins, chatService, speechService)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Parent coach backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
