package checker

import (
	"fmt"
	"strings"

	"github.com/voyagen/streamscout/internal/models"
)

// Outcome is what a single probe observed. StatusCode is zero when no
// response was received.
type Outcome struct {
	StatusCode int
	Err        error
}

// Strategy turns a probe outcome into a terminal channel status.
type Strategy interface {
	Name() string
	Classify(o Outcome) models.Status
}

// Optimistic counts any completed response as reachable; only transport
// errors and timeouts are offline. Browsers probing cross-origin streams see
// opaque responses, so this is the mode that matches what a player sees.
type Optimistic struct{}

func (Optimistic) Name() string { return "optimistic" }

func (Optimistic) Classify(o Outcome) models.Status {
	if o.Err != nil {
		return models.StatusOffline
	}
	return models.StatusOnline
}

// Strict requires a 2xx or 3xx response.
type Strict struct{}

func (Strict) Name() string { return "strict" }

func (Strict) Classify(o Outcome) models.Status {
	if o.Err != nil || o.StatusCode < 200 || o.StatusCode >= 400 {
		return models.StatusOffline
	}
	return models.StatusOnline
}

// StrategyByName returns the strategy registered under name ("" means optimistic).
func StrategyByName(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "optimistic":
		return Optimistic{}, nil
	case "strict":
		return Strict{}, nil
	}
	return nil, fmt.Errorf("unknown check strategy %q", name)
}
