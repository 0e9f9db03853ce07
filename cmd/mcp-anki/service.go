// Package main implements the AnkiConnect MCP proxy server.
package main

import (
	"github.com/mcp-anki/mcp-anki/internal/ankiconnect"
	"go.uber.org/zap"
)

// AnkiService bundles the AnkiConnect client with the logger the tool
// handlers use. It carries no other state: decks, notes, cards and models
// all live in Anki, and every handler round-trips to it.
type AnkiService struct {
	Client *ankiconnect.Client
	Logger *zap.Logger
}

// NewAnkiService creates the service shared by all handlers.
func NewAnkiService(client *ankiconnect.Client, logger *zap.Logger) *AnkiService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnkiService{
		Client: client,
		Logger: logger,
	}
}
