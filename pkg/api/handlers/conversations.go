// Package handlers provides the HTTP handlers of the willingness API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/goclaw/willing/pkg/api/middleware"
	"github.com/goclaw/willing/pkg/api/response"
	"github.com/goclaw/willing/pkg/logger"
	"github.com/goclaw/willing/pkg/willing"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
	maxBodyBytes     = 64 << 10
)

// Willingness is the part of willing.Manager the API drives.
type Willingness interface {
	Records() []willing.Record
	GetWillingness(conversationID string) float64
	LastReplyTime(conversationID string) float64
	SetWillingness(ctx context.Context, conversationID string, value float64) error
	EvaluateStimulus(ctx context.Context, conv willing.Conversation, stim willing.Stimulus, tuning willing.Tuning) (willing.Decision, error)
	OnComposingStarted(ctx context.Context, conversationID string) error
	OnReplySent(ctx context.Context, conversationID string) error
}

// TuningSource supplies the tuning used for each evaluation.
type TuningSource interface {
	Tuning() willing.Tuning
}

// ChangePublisher is notified of score changes made through the API.
type ChangePublisher interface {
	BroadcastScoreChanged(conversationID, cause string, score float64)
}

// ConversationView is the API representation of a conversation record.
type ConversationView struct {
	ConversationID string  `json:"conversation_id"`
	Score          float64 `json:"score"`
	LastReplyAt    float64 `json:"last_reply_at"`
}

// ConversationList is the response of GET /api/v1/conversations.
type ConversationList struct {
	Conversations []ConversationView `json:"conversations"`
	Total         int                `json:"total"`
	Limit         int                `json:"limit"`
	Offset        int                `json:"offset"`
}

// ScoreRequest is the body of PUT /api/v1/conversations/{id}.
type ScoreRequest struct {
	Score *float64 `json:"score" validate:"required"`
}

// EvaluateRequest is the body of POST /api/v1/conversations/{id}/evaluate.
type EvaluateRequest struct {
	IsMentioned  bool    `json:"is_mentioned"`
	IsEmoji      bool    `json:"is_emoji"`
	InterestRate float64 `json:"interest_rate" validate:"gte=0"`
	GroupID      string  `json:"group_id" validate:"max=256"`
}

// ConversationHandler serves /api/v1/conversations.
type ConversationHandler struct {
	manager   Willingness
	tuning    TuningSource
	publisher ChangePublisher
	logger    logger.Logger
	validator *validator.Validate
}

// NewConversationHandler creates a conversation handler. publisher may be nil.
func NewConversationHandler(manager Willingness, tuning TuningSource, publisher ChangePublisher, log logger.Logger) *ConversationHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &ConversationHandler{
		manager:   manager,
		tuning:    tuning,
		publisher: publisher,
		logger:    log,
		validator: v,
	}
}

// List handles GET /api/v1/conversations.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil || limit <= 0 || limit > maxListLimit {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest,
			fmt.Sprintf("limit must be between 1 and %d", maxListLimit), requestID)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "offset must be >= 0", requestID)
		return
	}

	records := h.manager.Records()
	page := ConversationList{
		Conversations: []ConversationView{},
		Total:         len(records),
		Limit:         limit,
		Offset:        offset,
	}
	if offset < len(records) {
		end := min(offset+limit, len(records))
		for _, rec := range records[offset:end] {
			page.Conversations = append(page.Conversations, ConversationView(rec))
		}
	}

	response.JSON(w, http.StatusOK, page)
}

// Get handles GET /api/v1/conversations/{id}. Unknown conversations report
// the neutral defaults.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	response.JSON(w, http.StatusOK, ConversationView{
		ConversationID: id,
		Score:          h.manager.GetWillingness(id),
		LastReplyAt:    h.manager.LastReplyTime(id),
	})
}

// SetScore handles PUT /api/v1/conversations/{id}.
func (h *ConversationHandler) SetScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req ScoreRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.manager.SetWillingness(ctx, id, *req.Score); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondScore(w, id, willing.EventOverride)
}

// Evaluate handles POST /api/v1/conversations/{id}/evaluate.
func (h *ConversationHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req EvaluateRequest
	if !h.decode(w, r, &req) {
		return
	}

	d, err := h.manager.EvaluateStimulus(ctx,
		willing.Conversation{ID: id, GroupID: req.GroupID},
		willing.Stimulus{
			IsMentioned:  req.IsMentioned,
			IsEmoji:      req.IsEmoji,
			InterestRate: req.InterestRate,
			GroupID:      req.GroupID,
		},
		h.tuning.Tuning(),
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, d)
}

// Composing handles POST /api/v1/conversations/{id}/composing.
func (h *ConversationHandler) Composing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.manager.OnComposingStarted(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondScore(w, id, willing.EventComposing)
}

// Sent handles POST /api/v1/conversations/{id}/sent.
func (h *ConversationHandler) Sent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.manager.OnReplySent(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondScore(w, id, willing.EventSent)
}

func (h *ConversationHandler) respondScore(w http.ResponseWriter, id, cause string) {
	score := h.manager.GetWillingness(id)
	if h.publisher != nil {
		h.publisher.BroadcastScoreChanged(id, cause, score)
	}
	response.JSON(w, http.StatusOK, ConversationView{
		ConversationID: id,
		Score:          score,
		LastReplyAt:    h.manager.LastReplyTime(id),
	})
}

// decode reads and validates a JSON body, writing the error response itself
// when it returns false.
func (h *ConversationHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	requestID := middleware.GetRequestID(r.Context())

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest,
			"invalid request body: "+err.Error(), requestID)
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]any, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
			response.ErrorWithDetails(w, http.StatusBadRequest, response.ErrCodeValidationFailed,
				"request validation failed", details, requestID)
			return false
		}
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), requestID)
		return false
	}
	return true
}

func (h *ConversationHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	switch {
	case errors.Is(err, willing.ErrInvalidConversationID):
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, err.Error(), requestID)
	case errors.Is(err, willing.ErrInvalidStimulus), errors.Is(err, willing.ErrInvalidScore):
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), requestID)
	default:
		h.logger.ErrorContext(ctx, "conversation request failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", requestID,
		)
		response.HandleError(w, err, requestID)
	}
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
