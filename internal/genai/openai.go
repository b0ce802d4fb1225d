package genai

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const refineSystemPrompt = "You rewrite user requests into a single concise English prompt for an image generation model. Reply with the prompt only, no commentary."

type OpenAIClient struct {
	client     *openai.Client
	imageModel string
	textModel  string
}

func NewOpenAI(apiKey, baseURL, imageModel, textModel string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:     openai.NewClientWithConfig(config),
		imageModel: imageModel,
		textModel:  textModel,
	}
}

func (c *OpenAIClient) GenerateImage(ctx context.Context, prompt string) (Result, error) {
	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          c.imageModel,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to create image: %w", err)
	}
	if len(resp.Data) == 0 {
		return Result{}, fmt.Errorf("image response contained no data")
	}
	img, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return Result{}, fmt.Errorf("failed to decode image payload: %w", err)
	}
	return Result{Image: img, Model: c.imageModel}, nil
}

func (c *OpenAIClient) RefinePrompt(ctx context.Context, text string) (Refinement, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.textModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: refineSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return Refinement{}, fmt.Errorf("failed to refine prompt: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Refinement{}, fmt.Errorf("refinement response contained no choices")
	}
	return Refinement{
		Prompt:           resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
