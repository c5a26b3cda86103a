package notification

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/steward/internal/app/service/ledger"
	"github.com/fatflowers/steward/internal/app/service/subscription"
	"github.com/fatflowers/steward/internal/models"
	"github.com/fatflowers/steward/internal/platform/google/googlertdn"
	"github.com/fatflowers/steward/pkg/config"
	"github.com/fatflowers/steward/pkg/logctx"
	"github.com/fatflowers/steward/pkg/metrics"
	"github.com/fatflowers/steward/pkg/types"
)

// Handler drives the webhook pipeline: decode, verify, map, admit,
// reconcile. It owns no state transitions itself; those live in the
// reconciler.
type Handler struct {
	cfg       *config.Config
	ledgerSvc *ledger.Service
	subSvc    *subscription.Service
	oidc      *googlertdn.OIDCVerifier
	Logger    *zap.SugaredLogger

	resultCnt *prometheus.CounterVec
}

func NewHandler(cfg *config.Config, lg *ledger.Service, sub *subscription.Service, log *zap.SugaredLogger) *Handler {
	h := &Handler{
		cfg:       cfg,
		ledgerSvc: lg,
		subSvc:    sub,
		oidc:      googlertdn.NewOIDCVerifier(cfg.Google.JWKSRefreshInterval),
		Logger:    log,
	}

	if c, ok := metrics.NewMetric(metrics.MetricsNotificationResult, "steward").(*prometheus.CounterVec); ok {
		if err := prometheus.Register(c); err != nil {
			if are, dup := err.(prometheus.AlreadyRegisteredError); dup {
				c = are.ExistingCollector.(*prometheus.CounterVec)
			} else {
				log.Warnw("failed to register notification metric", "err", err)
				c = nil
			}
		}
		h.resultCnt = c
	}
	return h
}

func (h *Handler) countResult(provider types.Provider, result string) {
	if h.resultCnt != nil {
		h.resultCnt.WithLabelValues(string(provider), result).Inc()
	}
}

// HandleNotification runs one inbound webhook call through the pipeline
// and returns the reconciliation result for HTTP response shaping.
// Unauthentic and malformed payloads error out before the ledger or the
// audit log see them.
func (h *Handler) HandleNotification(c *gin.Context, provider types.Provider) (res *subscription.Result, resErr error) {
	log := logctx.FromGin(c, h.Logger)

	var parser Parser
	var err error
	switch provider {
	case types.ProviderApple:
		parser, err = ParseAppleRequest(h.cfg, c)
	case types.ProviderGoogle:
		parser, err = ParseGoogleRequest(h.cfg, h.oidc, c)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
	if err != nil {
		h.countResult(provider, "rejected")
		return nil, err
	}

	var traceID string
	if v, ok := c.Get("traceID"); ok {
		traceID, _ = v.(string)
	}
	dataBytes, _ := json.Marshal(parser.Raw())

	h.ledgerSvc.SaveRawLog(c.Request.Context(), &models.NotificationLog{
		Provider:         string(provider),
		TraceID:          traceID,
		NotificationID:   parser.NotificationID(),
		NotificationTime: time.Now(),
		Data:             datatypes.JSON(dataBytes),
		Status:           models.NotificationLogStatusReceived,
	})

	defer func() {
		resMap := map[string]any{"result": res}
		status := models.NotificationLogStatusHandled
		if resErr != nil {
			resMap["error"] = resErr.Error()
			status = models.NotificationLogStatusHandleFailed
		}
		resBytes, _ := json.Marshal(resMap)
		entry := &models.NotificationLog{
			Provider:         string(provider),
			TraceID:          traceID,
			NotificationID:   parser.NotificationID(),
			NotificationTime: time.Now(),
			Data:             datatypes.JSON(dataBytes),
			Result:           lo.ToPtr(datatypes.JSON(resBytes)),
			Status:           status,
		}
		if res != nil && res.UserID != "" {
			entry.UserID = lo.ToPtr(res.UserID)
		}
		h.ledgerSvc.SaveRawLog(c.Request.Context(), entry)
		if res != nil {
			h.countResult(provider, string(res.Status))
		} else {
			h.countResult(provider, "error")
		}
	}()

	if parser.IsTest() {
		log.Infow("test_notification_acknowledged", "provider", provider)
		return &subscription.Result{Status: subscription.ResultAcknowledged}, nil
	}

	ev, ok := parser.NormalizedEvent()
	if !ok {
		// Vendors add codes over time; an unfamiliar code is acknowledged
		// and dropped rather than corrupting state.
		log.Warnw("unrecognized_event_kind", "provider", provider, "code", parser.EventCode())
		return &subscription.Result{Status: subscription.ResultUnrecognized}, nil
	}
	ev.Payload = dataBytes

	return h.subSvc.ProcessEvent(c.Request.Context(), ev)
}
