// Package app wires configuration, storage, the model substrate and the HTTP
// surface into one runnable application.
package app

import (
	"net/http"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyago/voyago/internal/chat"
	"github.com/voyago/voyago/internal/config"
	"github.com/voyago/voyago/internal/log"
)

// App is the assembled application container.
type App struct {
	Config       *config.Config
	Genkit       *genkit.Genkit
	DBPool       *pgxpool.Pool
	Orchestrator *chat.Orchestrator
	Handler      http.Handler

	logger      log.Logger
	otelCleanup func()
}

// Close releases resources in reverse setup order.
func (a *App) Close() error {
	a.logger.Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.logger.Info("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
