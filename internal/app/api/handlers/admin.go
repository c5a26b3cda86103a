package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/steward/internal/app/service/ledger"
	"github.com/fatflowers/steward/internal/app/service/notification"
	subsvc "github.com/fatflowers/steward/internal/app/service/subscription"
	"github.com/fatflowers/steward/internal/models"
	"github.com/fatflowers/steward/pkg/response"
)

type SubscriptionDetail struct {
	Subscription *models.UserSubscription  `json:"subscription"`
	RecentLogs   []*models.SubscriptionLog `json:"recent_logs"`
}

type ResolvePendingLinkRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type ResyncRequest struct {
	OriginalTransactionID string `json:"original_transaction_id" binding:"required"`
}

// @Summary      Scan Notification Ledger (Admin)
// @Description  Paginated, filterable listing of the processed-notification ledger for audit and debugging.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ledger.ScanRequest true "filters and paging"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/notifications/scan [post]
func ApiScanNotifications(lg *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ledger.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := lg.Scan(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Get User Subscription (Admin)
// @Tags         Admin
// @Produce      json
// @Param        userID path string true "user id"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/subscriptions/{userID} [get]
func ApiGetUserSubscription(sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userID")
		s, logs, err := sub.GetUserSubscription(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&SubscriptionDetail{Subscription: s, RecentLogs: logs}))
	}
}

// @Summary      List Pending Links (Admin)
// @Description  Verified notifications whose subscription key matched no user, awaiting manual linking.
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/pending-links [get]
func ApiListPendingLinks(sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		links, err := sub.ListPendingLinks(c.Request.Context(), 50)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(links))
	}
}

// @Summary      Resolve Pending Link (Admin)
// @Description  Binds a queued subscription key to a user and replays the stored event.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id path string true "pending link id"
// @Param        request body handlers.ResolvePendingLinkRequest true "target user"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/pending-links/{id}/resolve [post]
func ApiResolvePendingLink(sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResolvePendingLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := sub.ResolvePendingLink(c.Request.Context(), c.Param("id"), req.UserID)
		if err != nil {
			if errors.Is(err, subsvc.ErrPendingLinkNotFound) {
				c.JSON(http.StatusNotFound, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Resync Subscription (Admin)
// @Description  Fetches the current transaction state from the App Store Server API and reconciles it.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.ResyncRequest true "original transaction id"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/subscriptions/resync [post]
func ApiResyncSubscription(h *notification.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResyncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := h.Resync(c.Request.Context(), req.OriginalTransactionID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, lg *ledger.Service, sub *subsvc.Service, h *notification.Handler) {
	r.POST("/notifications/scan", ApiScanNotifications(lg))
	r.GET("/subscriptions/:userID", ApiGetUserSubscription(sub))
	r.POST("/subscriptions/resync", ApiResyncSubscription(h))
	r.GET("/pending-links", ApiListPendingLinks(sub))
	r.POST("/pending-links/:id/resolve", ApiResolvePendingLink(sub))
}
