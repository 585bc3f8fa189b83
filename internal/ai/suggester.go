package ai

import (
	"context"
	"encoding/json"

	"github.com/logicgrid/logicgrid/internal/protocol"
)

// Suggester defines the interface contract for AI-backed action suggestion.
type Suggester interface {
	// Suggest turns a natural-language request plus the current protocol
	// document into a list of builder actions.
	Suggest(ctx context.Context, prompt string, protocolJSON json.RawMessage) ([]protocol.Action, error)
	ModelName() string
}
