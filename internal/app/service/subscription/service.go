package subscription

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/steward/internal/app/service/ledger"
	"github.com/fatflowers/steward/pkg/config"
	"github.com/fatflowers/steward/pkg/types"
)

// Event is a normalized, already-verified subscription event on its way
// to reconciliation. Transient; built by the notification pipeline.
type Event struct {
	Provider       types.Provider  `json:"provider"`
	Kind           types.EventKind `json:"kind"`
	NotificationID string          `json:"notification_id"`
	// SubscriptionKey is the vendor-native identity: Apple's original
	// transaction id or Google's purchase token.
	SubscriptionKey string    `json:"subscription_key"`
	OccurredAt      time.Time `json:"occurred_at"`
	ProductID       string    `json:"product_id"`
	// AccountUserID is the user id recovered from the app-provided
	// account token, when the vendor payload carried one.
	AccountUserID    string          `json:"account_user_id,omitempty"`
	AutoRenewEnabled bool            `json:"auto_renew_enabled"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	// Reason defaults to SubscriptionChangeReasonNotification; the admin
	// resync flow overrides it.
	Reason types.SubscriptionChangeReason `json:"reason,omitempty"`
}

func (ev *Event) changeReason() types.SubscriptionChangeReason {
	if ev.Reason != "" {
		return ev.Reason
	}
	return types.SubscriptionChangeReasonNotification
}

type ResultStatus string

const (
	ResultApplied     ResultStatus = "applied"
	ResultDuplicate   ResultStatus = "duplicate"
	ResultStale       ResultStatus = "stale"
	ResultNoOp        ResultStatus = "no_op"
	ResultPendingLink ResultStatus = "pending_link"
	// ResultUnrecognized is produced upstream of reconciliation, when a
	// vendor code has no mapping; included here so HTTP shaping and
	// metrics share one status vocabulary.
	ResultUnrecognized ResultStatus = "unrecognized"
	// ResultAcknowledged covers vendor test notifications.
	ResultAcknowledged ResultStatus = "acknowledged"
)

// Result reports what reconciliation did with an event.
type Result struct {
	Status   ResultStatus `json:"status"`
	UserID   string       `json:"user_id,omitempty"`
	LedgerID string       `json:"ledger_id,omitempty"`
}

// Service reconciles normalized events into per-user subscription state.
type Service struct {
	cfg    *config.Config
	db     *gorm.DB
	ledger *ledger.Service
	log    *zap.SugaredLogger
}

func NewService(cfg *config.Config, db *gorm.DB, lg *ledger.Service, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, db: db, ledger: lg, log: log}
}
