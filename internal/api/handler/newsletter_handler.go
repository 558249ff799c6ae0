package handler

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/solweekly/weekly-roundup/internal/api/middleware"
	"github.com/solweekly/weekly-roundup/internal/domain"
	"github.com/solweekly/weekly-roundup/internal/service"
)

// NewsletterHandler triggers newsletter sends.
type NewsletterHandler struct {
	dispatcher *service.Dispatcher
	logger     *zap.Logger
}

func NewNewsletterHandler(dispatcher *service.Dispatcher, logger *zap.Logger) *NewsletterHandler {
	return &NewsletterHandler{dispatcher: dispatcher, logger: logger}
}

type sendRequest struct {
	AdminKey    string `json:"adminKey"`
	RoundupSlug string `json:"roundupSlug"`
}

type testSendRequest struct {
	AdminKey    string `json:"adminKey"`
	TestEmail   string `json:"testEmail"`
	RoundupSlug string `json:"roundupSlug"`
}

// Send handles POST /api/newsletter/send
//
// Partial and total delivery failure both answer 200; the counts tell them
// apart and success is false only when no recipient was reached.
//
// @Summary  Send a roundup to every subscriber (admin)
// @Tags     newsletter
// @Accept   json
// @Produce  json
// @Param    body  body      sendRequest  true  "Admin key and optional roundup slug (latest when empty)"
// @Success  200   {object}  map[string]any
// @Failure  400   {object}  map[string]string  "No subscribers"
// @Failure  401   {object}  map[string]string
// @Failure  404   {object}  map[string]string
// @Router   /api/newsletter/send [post]
func (h *NewsletterHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	report, err := h.dispatcher.Send(r.Context(), req.RoundupSlug, req.AdminKey)
	if err != nil {
		h.logFailure(r, "newsletter send failed", err)
		mapError(w, err)
		return
	}

	msg := fmt.Sprintf("Newsletter sent to %d subscribers", report.Sent)
	if report.Failed > 0 {
		msg += fmt.Sprintf(" (%d failed)", report.Failed)
	}
	failures := report.Failures()
	if failures == nil {
		failures = []domain.DeliveryOutcome{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":  report.Sent > 0,
		"message":  msg,
		"total":    report.Total,
		"sent":     report.Sent,
		"failed":   report.Failed,
		"batches":  report.Batches,
		"roundup":  report.Title,
		"slug":     report.Slug,
		"failures": failures,
	})
}

// SendTest handles POST /api/newsletter/test
//
// @Summary  Send a roundup to a single test address (admin)
// @Tags     newsletter
// @Accept   json
// @Produce  json
// @Param    body  body      testSendRequest  true  "Admin key, test address and optional roundup slug"
// @Success  200   {object}  map[string]any
// @Failure  400   {object}  map[string]string
// @Failure  401   {object}  map[string]string
// @Failure  404   {object}  map[string]string
// @Failure  500   {object}  map[string]string
// @Router   /api/newsletter/test [post]
func (h *NewsletterHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	var req testSendRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	res, err := h.dispatcher.SendTest(r.Context(), req.RoundupSlug, req.AdminKey, req.TestEmail)
	if err != nil {
		h.logFailure(r, "test send failed", err)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Test email sent to " + res.Recipient,
		"messageId": res.MessageID,
		"roundup":   res.Title,
		"slug":      res.Slug,
	})
}

// logFailure logs at warn for caller mistakes and at error for everything
// else.
func (h *NewsletterHandler) logFailure(r *http.Request, msg string, err error) {
	fields := []zap.Field{
		zap.String("request_id", apimw.GetRequestID(r.Context())),
		zap.Error(err),
	}
	switch {
	case errors.Is(err, domain.ErrInvalidAdminKey),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrMissingField),
		errors.Is(err, domain.ErrArticleNotFound),
		errors.Is(err, domain.ErrNoSubscribers):
		h.logger.Warn(msg, fields...)
	default:
		h.logger.Error(msg, fields...)
	}
}
