package genai

import "context"

// Result carries one generated image and the token cost of producing it.
type Result struct {
	Image            []byte
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Generator produces an image from a finished prompt.
type Generator interface {
	GenerateImage(ctx context.Context, prompt string) (Result, error)
}

// Refinement is a refined prompt plus the token cost of refining it.
type Refinement struct {
	Prompt           string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Refiner rewrites user text (optionally under a style template) into
// a generation prompt.
type Refiner interface {
	RefinePrompt(ctx context.Context, text string) (Refinement, error)
}
