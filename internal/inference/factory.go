package inference

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"mailpilot/pkg/circuitbreaker"
	"mailpilot/pkg/config"
	"mailpilot/pkg/metrics"
)

// NewFromConfig builds the provider selected by llm.provider and wraps it
// with timeout, retry and circuit breaking.
func NewFromConfig(cfg config.LLMConfig, logger *zap.Logger) (*LLMClient, error) {
	httpClient := &http.Client{Timeout: config.Seconds(cfg.TimeoutSeconds)}

	var (
		provider Completer
		err      error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", "openai", "groq":
		provider, err = NewOpenAICompleter(cfg, httpClient)
	case "anthropic":
		provider, err = NewAnthropicCompleter(cfg, httpClient)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	bcfg := circuitbreaker.DefaultConfig()
	bcfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		metrics.IncrementCircuitBreakerTransition(name, to.String())
		logger.Warn("circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	breaker := circuitbreaker.New("llm", bcfg)

	resilient := NewResilientCompleter(provider, breaker, config.Seconds(cfg.TimeoutSeconds), cfg.MaxRetries, logger)
	logger.Info("inference client ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
	)
	return NewClient(resilient, Options{
		MaxBodyChars:   cfg.MaxBodyChars,
		ReplyBodyChars: cfg.ReplyBodyChars,
	}, logger), nil
}
