package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/modochat/server/internal/store"
)

// FallbackReply is returned as the bot message whenever the generation
// provider fails. The chat flow always appends a bot message, successful or
// not.
const FallbackReply = "could not obtain a response"

const defaultTimeout = 30 * time.Second

type ChatService struct {
	gen     Generator
	timeout time.Duration
}

func NewChatService(gen Generator, timeout time.Duration) *ChatService {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ChatService{gen: gen, timeout: timeout}
}

// Reply generates the bot's answer for the conversation so far. Any provider
// failure, including a timeout, degrades to FallbackReply.
func (s *ChatService) Reply(ctx context.Context, messages []store.Message, mode string) string {
	prompt := BuildPrompt(messages, PromptForMode(mode))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.gen.Generate(ctx, prompt, GenOptions{
		MaxTokens:     350,
		Temperature:   0.75,
		StopSequences: []string{"--"},
	})
	if err != nil {
		log.Printf("Error generating reply: %v", err)
		return FallbackReply
	}
	return strings.TrimSpace(reply)
}

// Title derives a short label from a chat's opening text. Best-effort: any
// failure yields an empty string, never an error.
func (s *ChatService) Title(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	prompt := fmt.Sprintf("Summarize in 2 to 4 words the main topic of the following message: %s\nTitle:", text)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	title, err := s.gen.Generate(ctx, prompt, GenOptions{
		MaxTokens:     10,
		Temperature:   0.5,
		StopSequences: []string{"\n"},
	})
	if err != nil {
		log.Printf("Error generating title: %v", err)
		return ""
	}
	return strings.Trim(title, "\"'\n\r\t .")
}
