package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/solweekly/weekly-roundup/internal/api/middleware"
	"github.com/solweekly/weekly-roundup/internal/domain"
	"github.com/solweekly/weekly-roundup/internal/service"
)

// Subscribe attempt results reported to onResult.
const (
	ResultAdded       = "added"
	ResultDuplicate   = "duplicate"
	ResultInvalid     = "invalid"
	ResultUnavailable = "unavailable"
	ResultError       = "error"
)

// SubscribeHandler serves the public signup endpoint and the admin
// list/remove endpoints on the same path.
type SubscribeHandler struct {
	registry *service.Registry
	auth     *service.AdminAuth
	onResult func(result string)
	logger   *zap.Logger
}

// NewSubscribeHandler builds the handler. onResult may be nil.
func NewSubscribeHandler(registry *service.Registry, auth *service.AdminAuth, onResult func(string), logger *zap.Logger) *SubscribeHandler {
	if onResult == nil {
		onResult = func(string) {}
	}
	return &SubscribeHandler{registry: registry, auth: auth, onResult: onResult, logger: logger}
}

type subscribeRequest struct {
	Email string `json:"email"`
}

type removeRequest struct {
	Email string `json:"email"`
	Key   string `json:"key"`
}

// Subscribe handles POST /api/subscribe
//
// @Summary  Add an email to the mailing list
// @Tags     subscribers
// @Accept   json
// @Produce  json
// @Param    body  body      subscribeRequest  true  "Subscriber email"
// @Success  200   {object}  map[string]any
// @Failure  400   {object}  map[string]string  "Invalid or already subscribed"
// @Failure  503   {object}  map[string]any     "Storage not configured"
// @Router   /api/subscribe [post]
func (h *SubscribeHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.onResult(ResultInvalid)
		respondError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	email, err := h.registry.Add(r.Context(), req.Email)
	if err != nil {
		result := subscribeResult(err)
		h.onResult(result)
		if result == ResultError {
			h.logger.Error("subscribe failed",
				zap.String("request_id", apimw.GetRequestID(r.Context())),
				zap.Error(err),
			)
		}
		mapError(w, err)
		return
	}

	h.onResult(ResultAdded)
	h.logger.Debug("subscriber added", zap.String("email", email))
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Successfully added to mailing list",
	})
}

// List handles GET /api/subscribe?key=K
//
// @Summary  List subscribers (admin)
// @Tags     subscribers
// @Produce  json
// @Param    key  query     string  true  "Admin key"
// @Success  200  {object}  map[string]any
// @Failure  401  {object}  map[string]string
// @Router   /api/subscribe [get]
func (h *SubscribeHandler) List(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Check(r.URL.Query().Get("key")); err != nil {
		h.logAuthFailure(r, err)
		mapError(w, err)
		return
	}

	subscribers := h.registry.List(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"count":       len(subscribers),
		"subscribers": subscribers,
	})
}

// Remove handles DELETE /api/subscribe
//
// @Summary  Remove a subscriber (admin)
// @Tags     subscribers
// @Accept   json
// @Produce  json
// @Param    body  body      removeRequest  true  "Email and admin key"
// @Success  200   {object}  map[string]any
// @Failure  401   {object}  map[string]string
// @Failure  404   {object}  map[string]string
// @Router   /api/subscribe [delete]
func (h *SubscribeHandler) Remove(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if req.Key == "" {
		req.Key = r.URL.Query().Get("key")
	}

	if err := h.auth.Check(req.Key); err != nil {
		h.logAuthFailure(r, err)
		mapError(w, err)
		return
	}

	email, err := h.registry.Remove(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, domain.ErrSubscriberNotFound) && !errors.Is(err, domain.ErrMissingField) {
			h.logger.Error("remove subscriber failed",
				zap.String("request_id", apimw.GetRequestID(r.Context())),
				zap.Error(err),
			)
		}
		mapError(w, err)
		return
	}

	h.logger.Debug("subscriber removed", zap.String("email", email))
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Email removed successfully",
		"count":   len(h.registry.List(r.Context())),
	})
}

func (h *SubscribeHandler) logAuthFailure(r *http.Request, err error) {
	h.logger.Warn("admin request rejected",
		zap.String("request_id", apimw.GetRequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
}

func subscribeResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadySubscribed):
		return ResultDuplicate
	case errors.Is(err, domain.ErrInvalidEmail), errors.Is(err, domain.ErrMissingField):
		return ResultInvalid
	case errors.Is(err, domain.ErrNotConfigured), errors.Is(err, domain.ErrReadOnlyStore):
		return ResultUnavailable
	default:
		return ResultError
	}
}
