package chat

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// generationTemperature matches the sampling temperature used for
// answer generation.
const generationTemperature = 0.7

// GenkitGenerator produces responses through a Genkit model.
type GenkitGenerator struct {
	g         *genkit.Genkit
	modelName string
}

// NewGenkitGenerator creates a Generator backed by the named model,
// e.g. "googleai/gemini-2.5-flash".
func NewGenkitGenerator(g *genkit.Genkit, modelName string) *GenkitGenerator {
	return &GenkitGenerator{g: g, modelName: modelName}
}

// Generate sends system prompt, history, and the augmented user prompt
// to the model and returns its text.
func (gg *GenkitGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	messages := make([]*ai.Message, 0, len(req.History)+1)
	for _, msg := range req.History {
		if msg.Role == "assistant" {
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(msg.Content)))
		} else {
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(msg.Content)))
		}
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(req.Prompt)))

	response, err := genkit.Generate(ctx, gg.g,
		ai.WithModelName(gg.modelName),
		ai.WithSystem(req.System),
		ai.WithMessages(messages...),
		ai.WithConfig(map[string]any{"temperature": generationTemperature}),
	)
	if err != nil {
		return "", fmt.Errorf("model generation failed: %w", err)
	}

	return response.Text(), nil
}
