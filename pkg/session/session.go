package session

import (
	"context"
	"errors"
	"time"

	"github.com/cuemby/herald/pkg/botlog"
	"github.com/cuemby/herald/pkg/types"
)

var (
	// ErrSessionCreation is returned by Init when a session cannot be created
	ErrSessionCreation = errors.New("session creation failed")

	// ErrSessionUpdate is returned by Update when the session could not be refreshed
	ErrSessionUpdate = errors.New("session update failed")

	// ErrShutdown is returned by calls made after Shutdown
	ErrShutdown = errors.New("session is shut down")

	// ErrNotFound is returned by Storage.Get for a key that was never stored
	ErrNotFound = errors.New("not found")
)

// FriendSyncConfig controls the engine's own friend reconciliation
type FriendSyncConfig struct {
	UpdateInterval time.Duration
	AutoFollow     bool
	AutoUnfollow   bool
}

// SocialSummary is the engine's view of the bot's social graph
type SocialSummary struct {
	TargetFollowingCount int
	TargetFollowerCount  int
}

// Identity is the display identity the engine signed in as
type Identity struct {
	Gamertag string
	XUID     string
}

// Session is a live connection to the presence-broadcasting service.
// Implementations own a Scheduler and stop it from Shutdown.
type Session interface {
	// Init signs in and creates the broadcast session
	Init(ctx context.Context, info types.SessionInfo, cfg FriendSyncConfig) error

	// Update refreshes the advertised session metadata
	Update(ctx context.Context, info types.SessionInfo) error

	// Shutdown tears the session down, cancels every task scheduled on
	// Scheduler and waits for in-flight runs to return
	Shutdown()

	SocialSummary(ctx context.Context) (SocialSummary, error)

	// RefreshFriends fetches the friend list and updates the cache
	RefreshFriends(ctx context.Context) ([]types.Friend, error)

	// CachedFriends returns the last fetched friend list
	CachedFriends() []types.Friend

	Unfollow(ctx context.Context, xuid string) error

	// DumpSession writes the current session document to storage
	DumpSession() error

	Identity() Identity

	Scheduler() *Scheduler

	// RestartRequests delivers a value whenever the engine detects a
	// failure it cannot recover from without a fresh session
	RestartRequests() <-chan struct{}
}

// Storage persists engine state for one bot. Get returns an error
// wrapping ErrNotFound for a missing key; any other error is a read
// failure.
type Storage interface {
	Get(key string) ([]byte, error)
	Put(key string, data []byte) error
	Delete(key string) error
}

// Factory constructs a fresh Session bound to one bot
type Factory func(bot *types.Bot, storage Storage, logger botlog.Logger) (Session, error)

// CurrentSessionKey is the storage key DumpSession writes to
const CurrentSessionKey = "current_session"
