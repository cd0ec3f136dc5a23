package proxy

import (
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/parent-coach/backend/pkg/utils"
)

// Handler 将 /llm/* 转发到 OpenAI 兼容的上游，并注入凭证。
type Handler struct {
	prefix string
	apiKey string
	proxy  *httputil.ReverseProxy
}

// New builds a proxy for upstream. prefix is the public path the routes are
// mounted under (e.g. "/api/llm") and is stripped before forwarding.
func New(upstream, apiKey, prefix string) (*Handler, error) {
	target, err := url.Parse(strings.TrimRight(upstream, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream url %q must be absolute", upstream)
	}

	h := &Handler{
		prefix: strings.TrimRight(prefix, "/"),
		apiKey: apiKey,
	}
	h.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, h.prefix)
			pr.Out.URL.RawPath = ""
			pr.SetURL(target)
			pr.Out.Header.Set("Authorization", "Bearer "+h.apiKey)
			pr.Out.Header.Del("Cookie")
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Printf("[proxy] upstream request %s failed: %v", r.URL.Path, err)
			utils.RespondError(w, http.StatusBadGateway, "upstream unavailable")
		},
	}
	return h, nil
}

// RegisterRoutes 注册代理路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Handle("/llm/*", h)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.apiKey == "" {
		utils.RespondError(w, http.StatusServiceUnavailable, "DEEPSEEK_API_KEY 未配置")
		return
	}
	log.Printf("[proxy] %s %s", r.Method, strings.TrimPrefix(r.URL.Path, h.prefix))
	h.proxy.ServeHTTP(w, r)
}
