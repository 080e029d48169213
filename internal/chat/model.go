package chat

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ChatModel generates assistant replies. Implementations must be safe
// for concurrent use.
type ChatModel interface {
	Complete(ctx context.Context, systemPrompt, message string) (string, error)
}

// OpenAIModel generates replies through the OpenAI chat completion API.
type OpenAIModel struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

func NewOpenAIModel(cfg domain.ChatConfig) *OpenAIModel {
	model := cfg.Model
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}

	return &OpenAIModel{
		client:      openai.NewClient(cfg.OpenAIKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}
}

func (m *OpenAIModel) Complete(ctx context.Context, systemPrompt, message string) (string, error) {
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       m.model,
		MaxTokens:   m.maxTokens,
		Temperature: m.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// CannedModel answers from a fixed per-intent script. Used when no API
// key is configured and in tests.
type CannedModel struct{}

var cannedReplies = map[string]string{
	"send_money":          "To send money, open the transfer screen, enter the recipient and amount, and confirm the payment.",
	"receive_money":       "To receive money, share your account email or payment link with the sender.",
	"check_balance":       "You can check your balance on the wallet overview screen, which shows all currencies you hold.",
	"transaction_history": "Your transaction history is available under the activity tab and can be filtered by date.",
	"currency_conversion": "Current exchange rates are shown on the convert screen before you confirm a conversion.",
	"security":            "Your account is protected by transaction monitoring. Enable two-factor authentication for extra safety.",
	"crypto":              "Crypto transfers are supported for selected assets. Network fees apply and settlement may take a few minutes.",
	"help":                "I can help with payments, balances, transaction history, currency conversion, and account security.",
}

func (CannedModel) Complete(ctx context.Context, systemPrompt, message string) (string, error) {
	intent := detectIntent(message)
	if reply, ok := cannedReplies[intent]; ok {
		return reply, nil
	}
	return "I can help with payments, balances, transaction history, currency conversion, and account security. What would you like to do?", nil
}
