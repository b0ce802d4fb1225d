package genai

import (
	"fmt"
	"strings"

	"ai-painter/internal/config"
)

const (
	ProviderOpenAI = "openai"
	ProviderYandex = "yandex"
)

// Factory creates generation clients with consistent configuration.
// Image generation is always OpenAI-backed; prompt refinement can be
// switched per provider.
type Factory struct {
	OpenaiAPIKey     string
	OpenaiBaseURL    string
	OpenaiImageModel string
	OpenaiTextModel  string
	YandexOAuthToken string
	YandexFolderID   string
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		OpenaiAPIKey:     cfg.OpenAIAPIKey,
		OpenaiBaseURL:    cfg.OpenAIBaseURL,
		OpenaiImageModel: cfg.OpenAIImageModel,
		OpenaiTextModel:  cfg.OpenAITextModel,
		YandexOAuthToken: cfg.YandexOAuthToken,
		YandexFolderID:   cfg.YandexFolderID,
	}
}

func (f *Factory) CreateGenerator() Generator {
	return NewOpenAI(f.OpenaiAPIKey, f.OpenaiBaseURL, f.OpenaiImageModel, f.OpenaiTextModel)
}

func (f *Factory) CreateRefiner(provider string) (Refiner, error) {
	switch strings.ToLower(provider) {
	case ProviderOpenAI:
		return NewOpenAI(f.OpenaiAPIKey, f.OpenaiBaseURL, f.OpenaiImageModel, f.OpenaiTextModel), nil
	case ProviderYandex:
		return NewYandexRefiner(f.YandexOAuthToken, f.YandexFolderID)
	default:
		return nil, fmt.Errorf("unknown refiner provider: %s", provider)
	}
}
