// Package assistant runs the conversational intake flow: deterministic
// extraction first, then a bounded tool loop against the language model. The
// model only ever touches drafts through the declared tools.
package assistant

import (
	"context"
	"log"

	genai "google.golang.org/genai"

	"civico/backend/internal/config"
)

// Turn is one step of the model-visible conversation. A turn carries text,
// the model's tool calls, or the router's tool results, never a mix.
type Turn struct {
	Role    string // "user" or "model"
	Text    string
	Calls   []ToolCall
	Results []ToolResult
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	Name string
	Args map[string]any
}

// ToolResult is the structured outcome handed back for one call.
type ToolResult struct {
	Name   string
	Result map[string]any
}

// ModelReply is what one model round produced: final text, or more calls.
type ModelReply struct {
	Text  string
	Calls []ToolCall
}

// ModelClient abstracts the language model so the orchestrator can be tested
// against a scripted double.
type ModelClient interface {
	Generate(ctx context.Context, history []Turn) (*ModelReply, error)
}

// GeminiClient is a thin wrapper around the official genai client, configured
// with the intake instructions and the four draft tools.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

// NewGeminiClient builds the client. The API key comes from the environment
// via the genai config.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = config.DefaultModelName
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

// toolDeclarations mirrors the tool router's surface. The model sees nothing
// beyond these four functions.
func toolDeclarations() []*genai.Tool {
	return []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        ToolListTypes,
				Description: "Lista los tipos de denuncia activos, con id y nombre.",
				Parameters: &genai.Schema{
					Type:       genai.TypeObject,
					Properties: map[string]*genai.Schema{},
				},
			},
			{
				Name:        ToolGetDraft,
				Description: "Devuelve el borrador de denuncia actual con sus campos.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"draft_id": {Type: genai.TypeString},
					},
					Required: []string{"draft_id"},
				},
			},
			{
				Name:        ToolUpdateDraft,
				Description: "Actualiza campos del borrador. Solo envía los campos que el ciudadano proporcionó.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"draft_id":    {Type: genai.TypeString},
						"type_id":     {Type: genai.TypeInteger},
						"description": {Type: genai.TypeString},
						"reference":   {Type: genai.TypeString},
						"latitude":    {Type: genai.TypeNumber},
						"longitude":   {Type: genai.TypeNumber},
						"address":     {Type: genai.TypeString},
					},
					Required: []string{"draft_id"},
				},
			},
			{
				Name:        ToolFinalizeDraft,
				Description: "Convierte el borrador en denuncia. Requiere confirmación explícita del ciudadano.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"draft_id":     {Type: genai.TypeString},
						"confirmation": {Type: genai.TypeBoolean},
					},
					Required: []string{"draft_id", "confirmation"},
				},
			},
		},
	}}
}

func toContents(history []Turn) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, t := range history {
		role := t.Role
		if role != "model" {
			role = "user"
		}
		var parts []*genai.Part
		if t.Text != "" {
			parts = append(parts, &genai.Part{Text: t.Text})
		}
		for _, c := range t.Calls {
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: c.Name, Args: c.Args},
			})
		}
		for _, r := range t.Results {
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{Name: r.Name, Response: r.Result},
			})
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}
	return out
}

// Generate runs one model round over the history and returns either final
// text or the tool calls the model wants executed.
func (g *GeminiClient) Generate(ctx context.Context, history []Turn) (*ModelReply, error) {
	ctx, cancel := context.WithTimeout(ctx, config.ModelCallTimeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: Instructions}}},
		Tools:             toolDeclarations(),
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model, toContents(history), cfg)
	if err != nil {
		log.Printf("ERROR: Model call failed: %v", err)
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return &ModelReply{}, nil
	}

	reply := &ModelReply{}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.FunctionCall != nil {
			reply.Calls = append(reply.Calls, ToolCall{
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
			continue
		}
		if part.Text != "" {
			reply.Text += part.Text
		}
	}
	return reply, nil
}
