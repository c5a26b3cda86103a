package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/steward/internal/app/service/notification"
	"github.com/fatflowers/steward/internal/app/service/subscription"
	"github.com/fatflowers/steward/pkg/logctx"
	"github.com/fatflowers/steward/pkg/response"
	"github.com/fatflowers/steward/pkg/types"
)

// @Summary      Apple Webhook
// @Description  Handles App Store Server Notifications V2. The request body carries a signed JWS payload.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        payload body applejws.AppStoreServerRequest true "App Store Server Notification V2 envelope"
// @Success      200  {object}  handlers.RespOK
// @Router       /webhooks/apple [post]
func ApiAppleWebhook(h *notification.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := h.HandleNotification(c, types.ProviderApple)
		writeWebhookResponse(c, h, types.ProviderApple, res, err)
	}
}

// @Summary      Google Webhook
// @Description  Handles Google Play Real-time Developer Notifications delivered by Pub/Sub push.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        payload body googlertdn.PushEnvelope true "Pub/Sub push envelope"
// @Success      200  {object}  handlers.RespOK
// @Router       /webhooks/google [post]
func ApiGoogleWebhook(h *notification.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := h.HandleNotification(c, types.ProviderGoogle)
		writeWebhookResponse(c, h, types.ProviderGoogle, res, err)
	}
}

// writeWebhookResponse shapes the HTTP status per vendor retry
// conventions: 200 for everything the pipeline consciously handled
// (processed, duplicate, stale, unrecognized, unlinked, unauthentic) so
// vendors stop retrying; 400 only for structurally malformed bodies; 5xx
// only for internal failures where a retry can actually help.
func writeWebhookResponse(c *gin.Context, h *notification.Handler, provider types.Provider, res *subscription.Result, err error) {
	log := logctx.FromGin(c, h.Logger)

	if err != nil {
		switch {
		case errors.Is(err, notification.ErrMalformedPayload):
			log.Warnw("webhook_malformed", "provider", provider, "error", err.Error())
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, nil))
		case errors.Is(err, notification.ErrUnauthenticNotification):
			// Security event: full detail stays in the log, the sender
			// only sees a generic acknowledgement.
			log.Errorw("webhook_unauthentic", "provider", provider, "remote", c.ClientIP(), "error", err.Error())
			c.JSON(http.StatusOK, response.OKT[any](nil))
		default:
			log.Errorw("webhook_handle_error", "provider", provider, "error", err.Error())
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, nil))
		}
		return
	}

	log.Infow("webhook_handled", "provider", provider, "status", res.Status)
	c.JSON(http.StatusOK, response.OKT(res))
}

func RegisterWebhookRoutes(r gin.IRouter, h *notification.Handler) {
	r.POST("/apple", ApiAppleWebhook(h))
	r.POST("/google", ApiGoogleWebhook(h))
}
