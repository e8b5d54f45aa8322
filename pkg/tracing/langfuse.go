// Package tracing wires LLM call tracing for the narrative path.
package tracing

import (
	"log/slog"
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// LangfuseConfig holds the Langfuse project credentials.
type LangfuseConfig struct {
	Host      string
	PublicKey string
	SecretKey string
}

// LangfuseFromEnv reads LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY.
func LangfuseFromEnv() LangfuseConfig {
	return LangfuseConfig{
		Host:      os.Getenv("LANGFUSE_HOST"),
		PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
	}
}

// Enabled reports whether every credential is present.
func (c LangfuseConfig) Enabled() bool {
	return c.Host != "" && c.PublicKey != "" && c.SecretKey != ""
}

// InitLangfuse registers a global Langfuse callback handler when the
// environment carries credentials. The returned flush must run before
// process exit; it is a no-op when tracing is off.
func InitLangfuse() (flush func()) {
	return Register(LangfuseFromEnv())
}

// Register installs the handler for cfg, or does nothing when cfg is incomplete.
func Register(cfg LangfuseConfig) (flush func()) {
	if !cfg.Enabled() {
		return func() {}
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      cfg.Host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
	})

	callbacks.AppendGlobalHandlers(handler)
	slog.Info("langfuse tracing enabled", "host", cfg.Host)

	return flusher
}
