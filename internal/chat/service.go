// Package chat implements the assistant endpoint: phrase-based intent
// detection, entity extraction, session state, and reply generation
// through a pluggable chat model.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/nlp"
)

const systemPrompt = `You are Kestrel, an AI assistant for a global payment and wallet platform.
You help users with:
- Sending and receiving money
- Currency conversion
- Transaction history
- Wallet management
- Security and fraud protection
- Blockchain and crypto transactions
- General financial advice

Always be helpful, accurate, and security-conscious. If you're unsure about something,
ask for clarification or direct users to contact support.

Current context: %s
User ID: %s`

// Request is one inbound chat message.
type Request struct {
	Message   string         `json:"message"`
	UserID    string         `json:"userId,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// Response is the assistant's structured reply.
type Response struct {
	Response    string       `json:"response"`
	Intent      string       `json:"intent"`
	Confidence  float64      `json:"confidence"`
	Entities    []nlp.Entity `json:"entities"`
	Suggestions []string     `json:"suggestions"`
	SessionID   string       `json:"session_id"`
}

// Session is the per-conversation state kept in the cache.
type Session struct {
	SessionID    string         `json:"session_id"`
	CreatedAt    time.Time      `json:"created_at"`
	MessageCount int            `json:"message_count"`
	LastActivity time.Time      `json:"last_activity,omitempty"`
	Context      map[string]any `json:"context"`
}

// Service handles chat messages. Replies come from the configured chat
// model; intent, entities, and suggestions are computed locally.
type Service struct {
	logger *slog.Logger
	cache  domain.Cache
	model  ChatModel
	nlp    *nlp.Service
}

// NewService selects the OpenAI backend when a key is configured and
// the canned responder otherwise.
func NewService(cfg domain.ChatConfig, cache domain.Cache, nlpSvc *nlp.Service, logger *slog.Logger) *Service {
	var model ChatModel
	if cfg.OpenAIKey != "" {
		model = NewOpenAIModel(cfg)
	} else {
		logger.Warn("no OpenAI key configured, using canned chat responses")
		model = CannedModel{}
	}

	return &Service{
		logger: logger.With("component", "chat"),
		cache:  cache,
		model:  model,
		nlp:    nlpSvc,
	}
}

// NewServiceWithModel injects a specific chat model.
func NewServiceWithModel(model ChatModel, cache domain.Cache, nlpSvc *nlp.Service, logger *slog.Logger) *Service {
	return &Service{
		logger: logger.With("component", "chat"),
		cache:  cache,
		model:  model,
		nlp:    nlpSvc,
	}
}

// chatIntentPatterns are phrase patterns checked in order; the first
// matching intent wins.
var chatIntentPatterns = []struct {
	intent   string
	patterns []string
}{
	{"send_money", []string{"send money", "transfer", "pay", "send to", "send cash"}},
	{"receive_money", []string{"receive money", "get paid", "receive payment", "money received"}},
	{"check_balance", []string{"balance", "how much", "check balance", "wallet balance"}},
	{"transaction_history", []string{"history", "transactions", "past payments", "transaction log"}},
	{"currency_conversion", []string{"convert", "exchange rate", "currency", "change currency"}},
	{"security", []string{"security", "fraud", "safe", "secure", "protection"}},
	{"help", []string{"help", "support", "how to", "guide", "tutorial"}},
	{"crypto", []string{"crypto", "bitcoin", "ethereum", "blockchain", "cryptocurrency"}},
}

func detectIntent(message string) string {
	lower := strings.ToLower(message)
	for _, group := range chatIntentPatterns {
		for _, pattern := range group.patterns {
			if strings.Contains(lower, pattern) {
				return group.intent
			}
		}
	}
	return "general"
}

// ProcessMessage handles one chat turn. Model failures degrade to an
// apology response rather than an error.
func (s *Service) ProcessMessage(ctx context.Context, req *Request) *Response {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("session_%s_%s", orAnonymous(req.UserID), uuid.NewString())
	}

	intent := detectIntent(req.Message)
	entities := s.nlp.ExtractEntities(req.Message)

	contextJSON, _ := json.Marshal(req.Context)
	prompt := fmt.Sprintf(systemPrompt, string(contextJSON), orAnonymous(req.UserID))

	reply, err := s.model.Complete(ctx, prompt, req.Message)
	if err != nil {
		s.logger.Error("chat completion failed", "session_id", sessionID, "error", err)
		return &Response{
			Response:    "I'm sorry, I encountered an error. Please try again or contact support.",
			Intent:      "error",
			Confidence:  0.0,
			Entities:    []nlp.Entity{},
			Suggestions: []string{"Contact support", "Try again"},
			SessionID:   sessionID,
		}
	}

	s.touchSession(ctx, sessionID, req.Context)

	return &Response{
		Response:    reply,
		Intent:      intent,
		Confidence:  intentConfidence(intent),
		Entities:    entities,
		Suggestions: suggestionsFor(intent),
		SessionID:   sessionID,
	}
}

func orAnonymous(userID string) string {
	if userID == "" {
		return "anonymous"
	}
	return userID
}

func intentConfidence(intent string) float64 {
	if intent == "general" {
		return 0.5
	}
	return 0.9
}

// DetectIntent exposes chat intent detection for the intent endpoint.
func (s *Service) DetectIntent(message string) (string, []nlp.Entity) {
	return detectIntent(message), s.nlp.ExtractEntities(message)
}

func suggestionsFor(intent string) []string {
	switch intent {
	case "send_money":
		return []string{
			"Enter recipient's email or phone number",
			"Specify the amount to send",
			"Choose the currency",
		}
	case "check_balance":
		return []string{
			"View all wallet balances",
			"Check transaction history",
			"Set up balance alerts",
		}
	case "transaction_history":
		return []string{
			"Filter by date range",
			"Search by amount or recipient",
			"Export transaction history",
		}
	case "currency_conversion":
		return []string{
			"Check current exchange rates",
			"Convert between currencies",
			"Set up rate alerts",
		}
	case "security":
		return []string{
			"Enable two-factor authentication",
			"Review security settings",
			"Check recent login activity",
		}
	default:
		return []string{
			"How can I help you today?",
			"Need help with payments?",
			"Want to check your balance?",
		}
	}
}

// GetSession returns the session state, or a fresh unsaved session
// when none exists.
func (s *Service) GetSession(ctx context.Context, sessionID string) *Session {
	if data, err := s.cache.Get(ctx, domain.KeyChatSession+sessionID); err == nil && data != nil {
		var session Session
		if err := json.Unmarshal(data, &session); err == nil {
			return &session
		}
	}

	return &Session{
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
		Context:   map[string]any{},
	}
}

// touchSession bumps the message count and refreshes the 24h TTL.
func (s *Service) touchSession(ctx context.Context, sessionID string, reqContext map[string]any) {
	session := s.GetSession(ctx, sessionID)
	session.MessageCount++
	session.LastActivity = time.Now().UTC()
	for k, v := range reqContext {
		session.Context[k] = v
	}

	data, err := json.Marshal(session)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, domain.KeyChatSession+sessionID, data, domain.SessionTTL); err != nil {
		s.logger.Warn("failed to save chat session", "session_id", sessionID, "error", err)
	}
}

// ClearSession drops the session state.
func (s *Service) ClearSession(ctx context.Context, sessionID string) error {
	return s.cache.Delete(ctx, domain.KeyChatSession+sessionID)
}
