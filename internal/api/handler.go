package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/chat"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/enrich"
	"github.com/opensource-finance/kestrel/internal/fraud"
	"github.com/opensource-finance/kestrel/internal/nlp"
	"github.com/opensource-finance/kestrel/internal/policy"
	"github.com/opensource-finance/kestrel/internal/repository"
)

// maxBatchSize caps one batch-analyze request.
const maxBatchSize = 100

// Handler holds dependencies for API handlers.
type Handler struct {
	fraud    *fraud.Service
	chat     *chat.Service
	nlp      *nlp.Service
	policies *policy.Engine
	enricher *enrich.GeoIP
	repo     domain.Repository
	cache    domain.Cache
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(fraudSvc *fraud.Service, chatSvc *chat.Service, nlpSvc *nlp.Service, policies *policy.Engine, enricher *enrich.GeoIP, repo domain.Repository, cache domain.Cache, version string) *Handler {
	return &Handler{
		fraud:    fraudSvc,
		chat:     chatSvc,
		nlp:      nlpSvc,
		policies: policies,
		enricher: enricher,
		repo:     repo,
		cache:    cache,
		version:  version,
	}
}

// Health returns server health with per-service status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{
		"fraud_detection": "healthy",
		"chat":            "healthy",
		"nlp":             "healthy",
	}

	if !h.fraud.Status().Ready {
		services["fraud_detection"] = "degraded"
	}
	if h.repo != nil {
		services["repository"] = "healthy"
		if err := h.repo.Ping(r.Context()); err != nil {
			services["repository"] = "degraded"
		}
	}
	if h.cache != nil {
		services["cache"] = "healthy"
		if err := h.cache.Ping(r.Context()); err != nil {
			services["cache"] = "degraded"
		}
	}

	status := "healthy"
	for _, s := range services {
		if s != "healthy" {
			status = "degraded"
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"version":  h.version,
		"services": services,
	})
}

// Ready returns whether the server is ready to accept traffic. Readiness
// requires a loaded model set.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.fraud.Status().Ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready": "false",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// Chat handles POST /chat requests.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "message is required",
		})
		return
	}
	if req.UserID == "" {
		req.UserID = GetCallerID(r.Context())
	}

	resp := h.chat.ProcessMessage(r.Context(), &req)
	writeJSON(w, http.StatusOK, resp)
}

// ChatIntentRequest is the request body for POST /chat/intent.
type ChatIntentRequest struct {
	Message string `json:"message"`
}

// ChatIntent detects the intent of a message without generating a reply.
func (h *Handler) ChatIntent(w http.ResponseWriter, r *http.Request) {
	var req ChatIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "message is required",
		})
		return
	}

	intent, entities := h.chat.DetectIntent(req.Message)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"intent":   intent,
		"entities": entities,
	})
}

// GetSession retrieves chat session state by ID.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "session id is required",
		})
		return
	}

	writeJSON(w, http.StatusOK, h.chat.GetSession(r.Context(), sessionID))
}

// ClearSession removes chat session state.
func (h *Handler) ClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "session id is required",
		})
		return
	}

	if err := h.chat.ClearSession(r.Context(), sessionID); err != nil {
		slog.Error("failed to clear session", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to clear session",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "session cleared",
	})
}

// FraudDetectRequest is the request body for POST /fraud/detect.
type FraudDetectRequest struct {
	TransactionID string                 `json:"transactionId,omitempty"`
	UserID        string                 `json:"userId"`
	Amount        float64                `json:"amount"`
	Currency      string                 `json:"currency"`
	Location      *domain.Location       `json:"location,omitempty"`
	DeviceInfo    *domain.DeviceInfo     `json:"deviceInfo,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

func (req *FraudDetectRequest) toInput(clientIP string) *domain.TransactionInput {
	txID := req.TransactionID
	if txID == "" {
		txID = uuid.New().String()
	}
	return &domain.TransactionInput{
		TransactionID: txID,
		UserID:        req.UserID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Location:      req.Location,
		Device:        req.DeviceInfo,
		ClientIP:      clientIP,
		Metadata:      req.Metadata,
	}
}

// FraudDetect handles POST /fraud/detect requests.
func (h *Handler) FraudDetect(w http.ResponseWriter, r *http.Request) {
	var req FraudDetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "userId is required",
		})
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must be positive",
		})
		return
	}

	tx := req.toInput(clientIP(r))
	h.enricher.Enrich(tx)

	assessment := h.fraud.Analyze(r.Context(), tx)
	writeJSON(w, http.StatusOK, assessment)
}

// FraudBatchRequest is the request body for POST /fraud/batch-analyze.
type FraudBatchRequest struct {
	Transactions []*FraudDetectRequest `json:"transactions"`
}

// FraudBatchAnalyze scores a batch of transactions in request order.
func (h *Handler) FraudBatchAnalyze(w http.ResponseWriter, r *http.Request) {
	var req FraudBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Transactions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactions must not be empty",
		})
		return
	}
	if len(req.Transactions) > maxBatchSize {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "too many transactions in one batch",
		})
		return
	}

	ip := clientIP(r)
	inputs := make([]*domain.TransactionInput, 0, len(req.Transactions))
	for i, t := range req.Transactions {
		if t.UserID == "" || t.Amount <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error": "userId and positive amount are required",
				"index": i,
			})
			return
		}
		tx := t.toInput(ip)
		h.enricher.Enrich(tx)
		inputs = append(inputs, tx)
	}

	results := h.fraud.BatchAnalyze(r.Context(), inputs)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// GetAnalysis retrieves a stored fraud analysis by transaction ID.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "id")
	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	assessment, err := h.fraud.GetAnalysis(r.Context(), txID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "analysis not found",
			})
			return
		}
		slog.Error("failed to get analysis", "transaction_id", txID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get analysis",
		})
		return
	}

	writeJSON(w, http.StatusOK, assessment)
}

// RiskProfile returns the aggregated risk profile for a user.
func (h *Handler) RiskProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "user id is required",
		})
		return
	}

	profile, err := h.fraud.RiskProfile(r.Context(), userID)
	if err != nil {
		slog.Error("failed to build risk profile", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to build risk profile",
		})
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// ListAlerts returns recent fraud alerts, newest first.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	alerts, err := h.repo.ListAlerts(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list alerts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// AnalyzeTransactionRequest is the request body for POST /analyze/transaction.
type AnalyzeTransactionRequest struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Merchant    string  `json:"merchant,omitempty"`
}

// AnalyzeTransaction categorizes a transaction and derives insights.
func (h *Handler) AnalyzeTransaction(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Description == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "description is required",
		})
		return
	}

	writeJSON(w, http.StatusOK, h.nlp.AnalyzeTransaction(req.Description, req.Amount, req.Merchant))
}

// TextRequest is the shared request body for the text analysis endpoints.
type TextRequest struct {
	Text        string `json:"text"`
	MaxLength   int    `json:"maxLength,omitempty"`
	MaxKeywords int    `json:"maxKeywords,omitempty"`
}

func decodeTextRequest(w http.ResponseWriter, r *http.Request) (*TextRequest, bool) {
	var req TextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return nil, false
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "text is required",
		})
		return nil, false
	}
	return &req, true
}

// AnalyzeSentiment scores the sentiment of a text.
func (h *Handler) AnalyzeSentiment(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTextRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.nlp.AnalyzeSentiment(req.Text))
}

// ExtractEntities returns typed entity spans found in a text.
func (h *Handler) ExtractEntities(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTextRequest(w, r)
	if !ok {
		return
	}

	entities := h.nlp.ExtractEntities(req.Text)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entities": entities,
		"count":    len(entities),
	})
}

// ExtractKeywords returns the top keywords of a text.
func (h *Handler) ExtractKeywords(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTextRequest(w, r)
	if !ok {
		return
	}

	maxKeywords := req.MaxKeywords
	if maxKeywords <= 0 {
		maxKeywords = 10
	}

	keywords := h.nlp.Keywords(req.Text, maxKeywords)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keywords": keywords,
		"count":    len(keywords),
	})
}

// Summarize shortens a text to at most maxLength characters.
func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTextRequest(w, r)
	if !ok {
		return
	}

	maxLength := req.MaxLength
	if maxLength <= 0 {
		maxLength = 100
	}

	summary := h.nlp.Summarize(req.Text, maxLength)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary":         summary,
		"original_length": len(req.Text),
		"summary_length":  len(summary),
	})
}

// DetectLanguage guesses the language of a text.
func (h *Handler) DetectLanguage(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTextRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"language": h.nlp.DetectLanguage(req.Text),
	})
}

// ModelStatus reports the state of the fraud models.
func (h *Handler) ModelStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models": h.fraud.Status(),
	})
}

// Retrain starts a background retrain of the fraud models.
func (h *Handler) Retrain(w http.ResponseWriter, r *http.Request) {
	if h.fraud.Status().Training {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "model training already in progress",
		})
		return
	}

	// Training takes a while; run it detached from the request context.
	go func() {
		if err := h.fraud.Retrain(context.Background()); err != nil {
			slog.Error("model retraining failed", "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "model retraining initiated",
		"status":  "started",
	})
}

// ListPolicies returns all enabled escalation policies.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.repo.ListPolicies(r.Context())
	if err != nil {
		slog.Error("failed to list policies", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list policies",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"policies": policies,
		"count":    len(policies),
		"loaded":   h.policies.Count(),
	})
}

// CreatePolicy validates, persists, and hot-loads an escalation policy.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var p domain.Policy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if p.Name == "" || p.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name and expression are required",
		})
		return
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	// Reject bad expressions before they reach the database.
	if err := h.policies.Compile(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid policy expression: " + err.Error(),
		})
		return
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	if err := h.repo.SavePolicy(ctx, &p); err != nil {
		slog.Error("failed to save policy", "id", p.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save policy",
		})
		return
	}

	if err := h.policies.Reload(ctx, h.repo); err != nil {
		slog.Error("failed to reload policies after create", "error", err)
	}

	slog.Info("policy created", "id", p.ID, "name", p.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"policy":  p,
		"message": "policy created and engine reloaded",
	})
}

// ReloadPolicies reloads all enabled policies from the database into
// the engine. This enables hot-reloading without server restart.
func (h *Handler) ReloadPolicies(w http.ResponseWriter, r *http.Request) {
	if err := h.policies.Reload(r.Context(), h.repo); err != nil {
		slog.Error("failed to reload policies", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload policies",
		})
		return
	}

	slog.Info("policies reloaded from database", "count", h.policies.Count())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "policies reloaded successfully",
		"count":   h.policies.Count(),
	})
}

// DeletePolicy disables a policy and reloads the engine.
func (h *Handler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID := chi.URLParam(r, "id")

	if policyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "policy id is required",
		})
		return
	}

	if err := h.repo.DeletePolicy(ctx, policyID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "policy not found",
			})
			return
		}
		slog.Error("failed to delete policy", "id", policyID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete policy",
		})
		return
	}

	if err := h.policies.Reload(ctx, h.repo); err != nil {
		slog.Error("failed to reload policies after delete", "error", err)
	}

	slog.Info("policy deleted", "id", policyID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "policy deleted and engine reloaded",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
