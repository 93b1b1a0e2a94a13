package provider

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// KnownSources lists every adapter this build can construct.
var KnownSources = []string{SourceCoinGecko, SourceCoinPaprika, SourceCoinCap}

// NewAdapters builds the adapters named in sources, in order. Unknown or
// duplicate names are rejected.
func NewAdapters(tracer trace.Tracer, sources []string, configs map[string]SourceConfig) ([]Adapter, error) {
	adapters := make([]Adapter, 0, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for _, name := range sources {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate source %q", name)
		}
		seen[name] = struct{}{}

		cfg := configs[name]
		switch name {
		case SourceCoinGecko:
			adapters = append(adapters, NewCoinGeckoAdapter(tracer, cfg))
		case SourceCoinPaprika:
			adapters = append(adapters, NewCoinPaprikaAdapter(tracer, cfg))
		case SourceCoinCap:
			adapters = append(adapters, NewCoinCapAdapter(tracer, cfg))
		default:
			return nil, fmt.Errorf("unknown source %q (known: %s)", name, strings.Join(KnownSources, ", "))
		}
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}
	return adapters, nil
}
