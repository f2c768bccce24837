package storage

import (
	"github.com/cuemby/herald/pkg/session"
	"github.com/cuemby/herald/pkg/types"
)

// ErrNotFound is returned when a record or session key does not exist. It
// is the same error session engines check for.
var ErrNotFound = session.ErrNotFound

// Store defines the interface for herald state storage
// This is implemented by BoltDB-backed storage
type Store interface {
	// Bots
	SaveBot(bot *types.Bot) error
	GetBot(id string) (*types.Bot, error)
	ListBots() ([]*types.Bot, error)
	DeleteBot(id string) error

	// Servers
	SaveServer(server *types.Server) error
	GetServer(id string) (*types.Server, error)
	ListServers() ([]*types.Server, error)
	DeleteServer(id string) error

	// Session data, one namespace per bot
	SessionStorage(botID string) session.Storage
	DeleteBotSessions(botID string) error

	// Utility
	Ping() error
	Close() error
}
