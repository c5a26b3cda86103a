package app

import (
	"time"

	"github.com/fatflowers/steward/internal/app/api/server"
	"github.com/fatflowers/steward/internal/app/service/ledger"
	"github.com/fatflowers/steward/internal/app/service/notification"
	"github.com/fatflowers/steward/internal/app/service/subscription"
	"github.com/fatflowers/steward/internal/platform/db"
	"github.com/fatflowers/steward/pkg/config"
	"github.com/fatflowers/steward/pkg/logger"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	server.Module,
	ledger.Module,
	subscription.Module,
	notification.Module,
)
