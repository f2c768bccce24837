package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/herald/pkg/botlog"
	"github.com/cuemby/herald/pkg/session"
	"github.com/cuemby/herald/pkg/types"
)

// Storage keys
const (
	ProfileKey = "profile"
	FriendsKey = "friends"
)

// DefaultFailureThreshold is the number of consecutive update failures
// after which the engine asks for a restart
const DefaultFailureThreshold = 3

// ErrNotFriend is returned by Unfollow for an unknown xuid
var ErrNotFriend = errors.New("not on friend list")

// Options configures engines built by NewFactory
type Options struct {
	FailureThreshold int
	Now              func() time.Time
}

// NewFactory returns a session.Factory building local engines
func NewFactory(opts Options) session.Factory {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultFailureThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return func(bot *types.Bot, storage session.Storage, logger botlog.Logger) (session.Session, error) {
		if storage == nil {
			return nil, fmt.Errorf("%w: no storage for bot %s", session.ErrSessionCreation, bot.ID)
		}
		return &Engine{
			botID:     bot.ID,
			storage:   storage,
			logger:    logger.Prefixed("session"),
			opts:      opts,
			scheduler: session.NewScheduler(),
			restart:   make(chan struct{}, 1),
		}, nil
	}
}

// Engine is an in-process session engine. It keeps the session document,
// identity and friend list in the bot's session storage and never talks to
// a remote service.
type Engine struct {
	botID     string
	storage   session.Storage
	logger    botlog.Logger
	opts      Options
	scheduler *session.Scheduler
	restart   chan struct{}

	mu        sync.Mutex
	closed    bool
	sessionID string
	identity  session.Identity
	info      types.SessionInfo
	friendCfg session.FriendSyncConfig
	friends   []types.Friend
	failures  int
	updatedAt time.Time
}

// Document is the session document written by DumpSession
type Document struct {
	SessionID string            `json:"sessionId"`
	Gamertag  string            `json:"gamertag"`
	XUID      string            `json:"xuid"`
	Info      types.SessionInfo `json:"properties"`
	Members   int               `json:"members"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func (e *Engine) Init(ctx context.Context, info types.SessionInfo, cfg session.FriendSyncConfig) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", session.ErrSessionCreation, err)
	}
	if err := validateInfo(info); err != nil {
		return fmt.Errorf("%w: %w", session.ErrSessionCreation, err)
	}

	identity, err := e.loadIdentity()
	if err != nil {
		return fmt.Errorf("%w: %w", session.ErrSessionCreation, err)
	}
	friends, err := e.loadFriends()
	if err != nil {
		return fmt.Errorf("%w: %w", session.ErrSessionCreation, err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return session.ErrShutdown
	}
	e.sessionID = uuid.NewString()
	e.identity = identity
	e.info = info
	e.friendCfg = cfg
	e.friends = friends
	e.updatedAt = e.opts.Now()
	sessionID := e.sessionID
	e.mu.Unlock()

	if cfg.UpdateInterval > 0 {
		e.scheduler.ScheduleWithFixedDelay(cfg.UpdateInterval, cfg.UpdateInterval, e.syncFriends)
	}

	e.logger.Infof("Created session %s for %s:%d", sessionID, info.IP, info.Port)
	return nil
}

func (e *Engine) Update(ctx context.Context, info types.SessionInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return session.ErrShutdown
	}

	if err := validateInfo(info); err != nil {
		e.failures++
		if e.failures >= e.opts.FailureThreshold {
			e.failures = 0
			e.requestRestart()
		}
		return fmt.Errorf("%w: %w", session.ErrSessionUpdate, err)
	}

	e.failures = 0
	e.info = info
	e.updatedAt = e.opts.Now()
	return nil
}

// requestRestart never blocks; one pending request is enough
func (e *Engine) requestRestart() {
	select {
	case e.restart <- struct{}{}:
		e.logger.Warn("Too many failed updates, requesting restart")
	default:
	}
}

func (e *Engine) Shutdown() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.scheduler.Stop()
}

func (e *Engine) SocialSummary(ctx context.Context) (session.SocialSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return session.SocialSummary{}, session.ErrShutdown
	}

	var summary session.SocialSummary
	for _, f := range e.friends {
		if f.Following {
			summary.TargetFollowingCount++
		}
		if f.Follower {
			summary.TargetFollowerCount++
		}
	}
	return summary, nil
}

// RefreshFriends reloads the friend list from storage, picking up edits
// made while the session was running
func (e *Engine) RefreshFriends(ctx context.Context) ([]types.Friend, error) {
	friends, err := e.loadFriends()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, session.ErrShutdown
	}
	e.friends = friends
	return cloneFriends(friends), nil
}

func (e *Engine) CachedFriends() []types.Friend {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneFriends(e.friends)
}

func (e *Engine) Unfollow(ctx context.Context, xuid string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return session.ErrShutdown
	}

	idx := -1
	for i, f := range e.friends {
		if f.XUID == xuid {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return fmt.Errorf("%s: %w", xuid, ErrNotFriend)
	}

	removed := e.friends[idx]
	e.friends = append(e.friends[:idx:idx], e.friends[idx+1:]...)
	friends := cloneFriends(e.friends)
	e.mu.Unlock()

	if err := e.saveFriends(friends); err != nil {
		return err
	}
	e.logger.Infof("Unfollowed %s (%s)", removed.Gamertag, xuid)
	return nil
}

func (e *Engine) DumpSession() error {
	e.mu.Lock()
	doc := Document{
		SessionID: e.sessionID,
		Gamertag:  e.identity.Gamertag,
		XUID:      e.identity.XUID,
		Info:      e.info,
		Members:   1,
		UpdatedAt: e.updatedAt,
	}
	e.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return e.storage.Put(session.CurrentSessionKey, data)
}

func (e *Engine) Identity() session.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.identity
}

func (e *Engine) Scheduler() *session.Scheduler {
	return e.scheduler
}

func (e *Engine) RestartRequests() <-chan struct{} {
	return e.restart
}

// syncFriends follows back followers and drops one-way follows, as
// configured
func (e *Engine) syncFriends(ctx context.Context) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	cfg := e.friendCfg
	kept := e.friends[:0:0]
	var followed, dropped int
	for _, f := range e.friends {
		switch {
		case cfg.AutoFollow && f.Follower && !f.Following:
			f.Following = true
			followed++
		case cfg.AutoUnfollow && f.Following && !f.Follower:
			dropped++
			continue
		}
		kept = append(kept, f)
	}
	e.friends = kept
	friends := cloneFriends(kept)
	e.mu.Unlock()

	if followed == 0 && dropped == 0 {
		return
	}
	if err := e.saveFriends(friends); err != nil {
		e.logger.Error("Failed to save friend list", err)
		return
	}
	e.logger.Infof("Friend sync: followed %d, unfollowed %d", followed, dropped)
}

func (e *Engine) loadIdentity() (session.Identity, error) {
	var identity session.Identity

	data, err := e.storage.Get(ProfileKey)
	switch {
	case errors.Is(err, session.ErrNotFound):
	case err != nil:
		return identity, fmt.Errorf("load profile: %w", err)
	default:
		if err := json.Unmarshal(data, &identity); err != nil {
			return identity, fmt.Errorf("decode profile: %w", err)
		}
		if identity.Gamertag != "" && identity.XUID != "" {
			return identity, nil
		}
	}

	identity = newIdentity()
	data, err = json.Marshal(identity)
	if err != nil {
		return identity, err
	}
	if err := e.storage.Put(ProfileKey, data); err != nil {
		return identity, fmt.Errorf("save profile: %w", err)
	}
	e.logger.Infof("Created profile %s", identity.Gamertag)
	return identity, nil
}

func (e *Engine) loadFriends() ([]types.Friend, error) {
	data, err := e.storage.Get(FriendsKey)
	if errors.Is(err, session.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load friends: %w", err)
	}

	var friends []types.Friend
	if err := json.Unmarshal(data, &friends); err != nil {
		return nil, fmt.Errorf("decode friends: %w", err)
	}
	sort.Slice(friends, func(i, j int) bool {
		return strings.ToLower(friends[i].Gamertag) < strings.ToLower(friends[j].Gamertag)
	})
	return friends, nil
}

func (e *Engine) saveFriends(friends []types.Friend) error {
	if friends == nil {
		friends = []types.Friend{}
	}
	data, err := json.Marshal(friends)
	if err != nil {
		return err
	}
	return e.storage.Put(FriendsKey, data)
}

// newIdentity derives a gamertag and a 16 digit xuid from a fresh uuid
func newIdentity() session.Identity {
	id := uuid.New()

	var digits strings.Builder
	digits.WriteString("2535")
	for _, b := range id[:12] {
		digits.WriteByte('0' + b%10)
	}

	return session.Identity{
		Gamertag: "Herald" + strings.ToUpper(id.String()[:6]),
		XUID:     digits.String(),
	}
}

func validateInfo(info types.SessionInfo) error {
	if info.IP == "" {
		return errors.New("server host is empty")
	}
	if info.Port <= 0 || info.Port > 65535 {
		return fmt.Errorf("invalid server port %d", info.Port)
	}
	return nil
}

func cloneFriends(friends []types.Friend) []types.Friend {
	if friends == nil {
		return []types.Friend{}
	}
	return append([]types.Friend(nil), friends...)
}
