package main

import (
	"github.com/verdantio/hydrofarm-backend/internal/config"
	"github.com/verdantio/hydrofarm-backend/internal/logging"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName)
}
