package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/opsight/opsight/internal/agent/provider"
)

// buildProvider selects the model provider. "mock" runs the whole pipeline
// against a scripted scenario file and needs no API access.
func buildProvider(model, mockScenario, anthropicKey string) (provider.Provider, error) {
	if model == "mock" || strings.HasPrefix(model, "mock:") {
		scenario := mockScenario
		if path := strings.TrimPrefix(model, "mock:"); path != model && path != "" {
			scenario = path
		}
		if scenario == "" {
			return nil, fmt.Errorf("mock model requires a scenario file: use --model mock:<path> or --mock-scenario")
		}
		return provider.LoadMockScenario(scenario)
	}

	cfg := provider.DefaultConfig()
	if model != "" {
		cfg.Model = model
	}

	if anthropicKey != "" {
		return provider.NewAnthropicProviderWithKey(anthropicKey, cfg)
	}
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return nil, fmt.Errorf("Anthropic API key required: set ANTHROPIC_API_KEY or use --anthropic-key")
	}
	return provider.NewAnthropicProvider(cfg)
}

// parseUpstreamFlags parses repeated source=url flags into a map.
func parseUpstreamFlags(flags []string) (map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	urls := make(map[string]string, len(flags))
	for _, flag := range flags {
		parts := strings.SplitN(flag, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid --upstream value %q, expected source=url", flag)
		}
		urls[parts[0]] = parts[1]
	}
	return urls, nil
}
