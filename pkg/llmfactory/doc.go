// Package llmfactory provides factories and configuration for LLM model instantiation,
// supporting multiple providers (Gemini, OpenAI, Anthropic, Bedrock) and model selection strategies.
package llmfactory
