package genai

import (
	"context"
	"fmt"

	"github.com/Morwran/yagpt"
)

type YandexRefiner struct {
	ya       yagpt.YaGPTFace
	iamToken string
}

func NewYandexRefiner(oauthToken, folderID string) (*YandexRefiner, error) {
	// Create IAM token from OAuth token
	iam, err := yagpt.NewYaIam(oauthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init yandex iam: %w", err)
	}
	resp, err := iam.Create()
	if err != nil {
		return nil, fmt.Errorf("failed to create iam token: %w", err)
	}

	ya, err := yagpt.NewYagpt(folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to init yagpt: %w", err)
	}

	return &YandexRefiner{
		ya:       ya,
		iamToken: resp.IamToken,
	}, nil
}

func (c *YandexRefiner) RefinePrompt(ctx context.Context, text string) (Refinement, error) {
	messages := []yagpt.Message{
		{Role: "system", Content: refineSystemPrompt},
		{Role: "user", Content: text},
	}

	resp, err := c.ya.CompletionWithCtx(ctx, c.iamToken, messages)
	if err != nil {
		return Refinement{}, fmt.Errorf("yagpt completion failed: %w", err)
	}
	if resp == nil || len(resp.Alternatives) == 0 {
		return Refinement{}, fmt.Errorf("yagpt returned empty response")
	}
	out := Refinement{Prompt: resp.Alternatives[0].Message.Content, Model: yagpt.YaModelLite}
	out.PromptTokens = int(resp.Usage.InputTextTokens)
	out.CompletionTokens = int(resp.Usage.CompletionTokens)
	return out, nil
}
