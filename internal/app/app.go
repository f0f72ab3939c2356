// Package app wires configuration, storage, the AI runtime, and the
// chat/retrieval components into a single container.
//
// Setup builds everything in dependency order and returns an App whose
// Close releases resources in reverse order. Components talk to each
// other through the small interfaces each package defines, so the
// container holds concrete types only at the edges.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swasthai/swasth/internal/chat"
	"github.com/swasthai/swasth/internal/config"
	"github.com/swasthai/swasth/internal/ingest"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	// Core services
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	// Domain components
	Sessions *chat.Registry
	Pipeline *ingest.Pipeline

	otelCleanup func()
	dbCleanup   func()
}

// Close gracefully shuts down all resources in reverse setup order.
// Safe to call on a partially initialized App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
		a.otelCleanup = nil
	}

	return nil
}
