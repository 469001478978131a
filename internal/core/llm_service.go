package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultModelName = "gemini-1.5-flash-latest"

// GenOptions tune a single generation request.
type GenOptions struct {
	MaxTokens     int32
	Temperature   float32
	StopSequences []string
}

// Generator is the external text-generation capability. Implementations make
// exactly one attempt per call; callers decide what a failure degrades to.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenOptions) (string, error)
}

// LLMService implements Generator over the Gemini API.
type LLMService struct {
	client *genai.Client
	model  string
}

func NewLLMService(ctx context.Context, apiKey, modelName string) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultModelName
	}
	return &LLMService{client: client, model: modelName}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		}
	}
}

func (s *LLMService) Generate(ctx context.Context, prompt string, opts GenOptions) (string, error) {
	model := s.client.GenerativeModel(s.model)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &opts.MaxTokens,
		Temperature:     &opts.Temperature,
		StopSequences:   opts.StopSequences,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation request failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no candidates received from gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		} else {
			log.Printf("Gemini response part was not text: %T", part)
		}
	}

	if text.Len() == 0 {
		return "", fmt.Errorf("gemini response contained no text")
	}
	return text.String(), nil
}
