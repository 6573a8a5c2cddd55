package cmd

import (
	"os"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/spf13/viper"

	"github.com/joescharf/magi/internal/llm"
)

// llmOptions are appended to every client; tests point the base URL here.
var llmOptions []option.RequestOption

// newLLMClient creates an LLM client from config/env, or returns nil if no API key is configured.
func newLLMClient() *llm.Client {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil
	}
	return llm.NewClient(apiKey, viper.GetString("anthropic.model"), llmOptions...)
}
