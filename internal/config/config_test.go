package config

import (
	"testing"
	"time"
)

func clearAIEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"GEMINI_API_KEY", "API_KEY", "DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL", "AI_TIMEOUT", "PORT", "NATIVE_TTS_ENABLED", "ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}
}

func TestUseRESTOnlyWithoutGeminiKey(t *testing.T) {
	cases := []struct {
		gemini, rest string
		want         bool
	}{
		{"", "", false},
		{"g", "", false},
		{"g", "r", false},
		{"", "r", true},
	}

	for _, tc := range cases {
		cfg := AIConfig{GeminiAPIKey: tc.gemini, RESTAPIKey: tc.rest}
		if got := cfg.UseREST(); got != tc.want {
			t.Fatalf("UseREST(gemini=%q, rest=%q) = %v, want %v", tc.gemini, tc.rest, got, tc.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearAIEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if len(cfg.Server.AllowedOrigins) != len(DefaultAllowedOrigins) || cfg.Server.AllowedOrigins[0] != "http://localhost:*" {
		t.Fatalf("unexpected origins: %v", cfg.Server.AllowedOrigins)
	}
	if cfg.AI.RESTBaseURL != "https://api.deepseek.com/v1" {
		t.Fatalf("unexpected REST base url: %s", cfg.AI.RESTBaseURL)
	}
	if cfg.AI.Timeout != 60*time.Second {
		t.Fatalf("unexpected timeout: %s", cfg.AI.Timeout)
	}
	if !cfg.Speech.NativeEnabled {
		t.Fatal("expected native narration enabled by default")
	}
}

func TestLoadGeminiKeyAlias(t *testing.T) {
	clearAIEnv(t)
	t.Setenv("API_KEY", "alias-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.AI.GeminiAPIKey != "alias-key" {
		t.Fatalf("expected alias key, got %q", cfg.AI.GeminiAPIKey)
	}
}

func TestLoadRejectsInvalidTimeout(t *testing.T) {
	clearAIEnv(t)
	t.Setenv("AI_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid AI_TIMEOUT")
	}
}

func TestLoadServerAddrVariants(t *testing.T) {
	clearAIEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}

	t.Setenv("PORT", "9001")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9001" {
		t.Fatalf("bare port should bind loopback, got %s", cfg.Server.Addr)
	}

	t.Setenv("PORT", ":9002")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":9002" {
		t.Fatalf("explicit addr should be kept, got %s", cfg.Server.Addr)
	}

	t.Setenv("PORT", "80 80")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for PORT with spaces")
	}
}

func TestLoadAllowedOrigins(t *testing.T) {
	clearAIEnv(t)
	t.Setenv("ALLOWED_ORIGINS", " http://localhost:5173 , ,https://coach.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	want := []string{"http://localhost:5173", "https://coach.example.com"}
	if len(cfg.Server.AllowedOrigins) != len(want) {
		t.Fatalf("unexpected origins: %v", cfg.Server.AllowedOrigins)
	}
	for i := range want {
		if cfg.Server.AllowedOrigins[i] != want[i] {
			t.Fatalf("origin %d = %q, want %q", i, cfg.Server.AllowedOrigins[i], want[i])
		}
	}
}
