package handler

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// WebhookReconciler applies one gateway event.  A nil return tells the
// gateway to stop redelivering; an error asks it to retry.
type WebhookReconciler interface {
	Apply(ctx context.Context, reference, pspReference, name string) error
}

// WebhookHandler is the asynchronous entry point for gateway payment
// outcomes.  Authenticity is a pre-shared secret in the Authorization
// header, checked before any state is read.
type WebhookHandler struct {
	Reconciler WebhookReconciler
	Secret     string
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(reconciler WebhookReconciler, secret string) *WebhookHandler {
	if reconciler == nil || secret == "" {
		panic("webhook handler needs a reconciler and a non-empty secret")
	}
	return &WebhookHandler{Reconciler: reconciler, Secret: secret}
}

// Handle processes POST /webhook.  Responses steer the gateway's retry
// behavior: 200 for anything handled or deliberately dropped (including
// unknown references and already-terminal transactions), 401 for a bad
// secret, 400 for a payload we could never act on, 500 only for a
// genuine internal failure worth redelivering.
func (h *WebhookHandler) Handle(c echo.Context) error {
	auth := c.Request().Header.Get("Authorization")
	if subtle.ConstantTimeCompare([]byte(auth), []byte(h.Secret)) != 1 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var body struct {
		Reference    string `json:"reference"`
		PSPReference string `json:"pspReference"`
		Name         string `json:"name"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	if body.Reference == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reference is required"})
	}

	if err := h.Reconciler.Apply(c.Request().Context(), body.Reference, body.PSPReference, body.Name); err != nil {
		c.Logger().Errorf("webhook: apply %s for %s failed: %v", body.Name, body.Reference, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
