package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/logicgrid/logicgrid/internal/protocol"
)

// Compile-time interface check
var _ Suggester = (*OpenAI)(nil)

// systemPrompt teaches the model the action schema the builder understands.
const systemPrompt = `
You are a configuration assistant for LogicGrid, a dynamic rule engine UI.

Your ONLY job is to convert natural language into a JSON object with this structure:

{
  "actions": [
    {
      "type": "addColumn" | "removeColumn" | "reorderColumn" | "updateColumn" |
              "setColumns" | "setScoringConfigs" | "applyTemplate" |
              "setProtocolMeta" | "saveProtocol" | "loadProtocol" | "noop",

      // FOR addColumn:
      "preset": "text_input" | "score_input" | "status" | "result",
      "name": "Custom Name",
      "id": "CustomID",      // ALWAYS send "id" if "name" is present.

      // FOR setScoringConfigs:
      "scoringConfigs": [
        {
          "triggerColumn": "NameOfColumnThatTriggersRule",
          "scope": "neither" | "positive" | "negative",
          "rules": [
            {
              "conditions": [
                { "col": "ColName", "op": ">" | "<" | "==" | "!=" | ">=" | "<=", "thresh": "5", "base": "zero" }
              ],
              "updates": [
                { "col": "TargetCol", "val": "NewValue" }
              ]
            }
          ]
        }
      ]
    }
  ]
}

IMPORTANT RULES:
1. For "addColumn":
   - IF the user specifies a name, you MUST include both "name" AND "id".
   - "id" should be the name with spaces removed (e.g. "Awesome Column" -> "AwesomeColumn").
   - Example: "Add an awesome column" -> { "type": "addColumn", "preset": "text_input", "name": "Awesome", "id": "Awesome" }
   - Example: "Add a score column" -> { "type": "addColumn", "preset": "score_input" } (Use defaults if no name specified)

2. For Scoring Rules ("If X > 5 then Y = 10"):
   - Use "type": "setScoringConfigs".
   - You MUST include ALL existing scoring configs from the "Current protocol JSON" if you want to keep them, plus your new one.
   - If the rule mentions a column that does not exist in the current protocol, ALSO generate an "addColumn" action for it (before the scoring action).
   - "op" must be one of: ">", ">=", "<", "<=", "==", "!=", "always".
   - "base" defaults to "zero". Use "negative" or "positive" if comparing to a control.

3. Preset Mappings:
   - "score", "int", "number" -> "score_input"
   - "text", "string", "notes", "comment" -> "text_input"
   - "dropdown", "status", "state" -> "status"
   - "calc", "result", "output" -> "result"

4. NEVER include explanations.
`

// ChatCompletionsService defines the interface for making chat completion API calls.
// This abstraction enables testing without calling the real OpenAI API.
type ChatCompletionsService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI implements the suggestion service using OpenAI's chat completions API
type OpenAI struct {
	completions ChatCompletionsService
	model       openai.ChatModel
}

// NewOpenAI creates a new OpenAI suggestion service
func NewOpenAI(apiKey, model string) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		completions: client.Chat.Completions,
		model:       openai.ChatModel(model),
	}
}

type suggestResponse struct {
	Actions []protocol.Action `json:"actions"`
}

// Suggest asks the model for builder actions matching the user's request.
// An empty completion is treated as "no actions", not an error.
func (o *OpenAI) Suggest(ctx context.Context, prompt string, protocolJSON json.RawMessage) ([]protocol.Action, error) {
	combinedUser := fmt.Sprintf(
		"Current protocol JSON:\n%s\n\nUser request:\n%s\n\nReturn ONLY a JSON object that matches the AISuggestResponse schema.",
		string(protocolJSON),
		prompt,
	)

	resp, err := o.completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.F(o.model),
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(combinedUser),
		}),
		ResponseFormat: openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](
			openai.ResponseFormatJSONObjectParam{
				Type: openai.F(openai.ResponseFormatJSONObjectTypeJSONObject),
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("suggestion generation failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return []protocol.Action{}, nil
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return []protocol.Action{}, nil
	}

	var parsed suggestResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("suggestion generation failed: invalid response JSON: %w", err)
	}

	return parsed.Actions, nil
}

// ModelName returns the chat model name
func (o *OpenAI) ModelName() string {
	return string(o.model)
}
