package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/parent-coach/backend/internal/config"
	"github.com/zhouzirui/parent-coach/backend/internal/handler/chat"
	"github.com/zhouzirui/parent-coach/backend/internal/handler/profile"
	"github.com/zhouzirui/parent-coach/backend/internal/handler/proxy"
	"github.com/zhouzirui/parent-coach/backend/internal/handler/speech"
	"github.com/zhouzirui/parent-coach/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/parent-coach/backend/internal/middleware"
	chatService "github.com/zhouzirui/parent-coach/backend/internal/service/chat"
	speechService "github.com/zhouzirui/parent-coach/backend/internal/service/speech"
	"github.com/zhouzirui/parent-coach/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. speechSvc may be nil;
// a nil origins policy falls back to config.DefaultAllowedOrigins.
func NewRouter(aiCfg config.AIConfig, origins *middlewarePkg.OriginPolicy, chatSvc *chatService.Service, speechSvc *speechService.Service) http.Handler {
	if origins == nil {
		origins, _ = middlewarePkg.NewOriginPolicy(config.DefaultAllowedOrigins)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(origins.Guard)
	r.Use(middlewarePkg.CORS(origins))

	profileHandler := profile.New(chatSvc)
	chatHandler := chat.New(chatSvc)

	var speechSvcIface speech.SpeechService
	var streamSpeech stream.SpeechService
	if speechSvc != nil {
		speechSvcIface = speechSvc
		streamSpeech = speechSvc
	}
	speechHandler := speech.New(speechSvcIface, chatSvc)
	streamHandler := stream.New(chatSvc, streamSpeech, origins.CheckRequest)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			state := chatSvc.Snapshot()
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":  "ok",
				"backend": state.Backend,
				"speech":  state.Speech,
			})
		})

		profileHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		speechHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)

		// 本地开发代理，页面可直接调用 OpenAI 兼容接口而不暴露密钥。
		proxyHandler, err := proxy.New(aiCfg.RESTBaseURL, aiCfg.RESTAPIKey, "/api/llm")
		if err != nil {
			log.Printf("[proxy] disabled: %v", err)
			return
		}
		proxyHandler.RegisterRoutes(api)
	})

	return r
}
