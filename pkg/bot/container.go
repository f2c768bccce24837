package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/herald/pkg/botlog"
	"github.com/cuemby/herald/pkg/events"
	"github.com/cuemby/herald/pkg/log"
	"github.com/cuemby/herald/pkg/metrics"
	"github.com/cuemby/herald/pkg/session"
	"github.com/cuemby/herald/pkg/types"
)

var (
	// ErrNotRunning is returned by pass-through calls while the bot is not online
	ErrNotRunning = errors.New("bot is not running")

	// ErrUnexpected wraps failures during start that the session engine did
	// not classify, including recovered panics
	ErrUnexpected = errors.New("unexpected error")
)

// Registry is the part of the bot registry a container depends on
type Registry interface {
	SaveBot(bot *types.Bot) error
	ServerSessionInfo(serverID string) (types.SessionInfo, error)
}

// Publisher receives lifecycle events
type Publisher interface {
	Publish(event *events.Event)
}

// Config holds per-bot lifecycle settings
type Config struct {
	LogSize         int
	SessionInterval time.Duration // session info refresh
	FriendInterval  time.Duration // engine friend sync
	StatsInterval   time.Duration // friend stats refresh
	Timeout         time.Duration // bound on a single engine call
}

// DefaultConfig returns the default lifecycle settings
func DefaultConfig() Config {
	return Config{
		LogSize:         100,
		SessionInterval: 30 * time.Second,
		FriendInterval:  20 * time.Second,
		StatsInterval:   60 * time.Second,
		Timeout:         30 * time.Second,
	}
}

// Dependencies are the collaborators shared by every container
type Dependencies struct {
	Registry Registry
	Factory  session.Factory
	Storage  session.Storage
	Events   Publisher
}

// Container owns one bot's lifecycle: its status, its session handle, its
// diagnostic log and the periodic refresh tasks that run while online.
//
// transitionMu serializes Start, Stop and Restart. mu guards the fields
// below it and is never held across a call into the session engine.
type Container struct {
	deps Dependencies
	cfg  Config
	logs *botlog.Buffer
	zl   zerolog.Logger

	transitionMu sync.Mutex

	mu          sync.RWMutex
	record      types.Bot
	status      types.BotStatus
	session     session.Session
	logger      botlog.Logger
	generation  uint64
	friendCount int
	unsubscribe chan struct{}
	closed      bool
}

// NewContainer creates an offline container for bot
func NewContainer(bot types.Bot, deps Dependencies, cfg Config) *Container {
	logs := botlog.NewBuffer(cfg.LogSize)
	zl := log.WithBotID(bot.ID)

	return &Container{
		deps:   deps,
		cfg:    cfg,
		logs:   logs,
		zl:     zl,
		record: bot,
		status: types.BotStatusOffline,
		logger: botlog.NewLogger(logs, zl),
	}
}

// ID returns the bot ID
func (c *Container) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.record.ID
}

// Bot returns a copy of the bot record
func (c *Container) Bot() types.Bot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.record
}

// SetServer retargets the bot and returns the updated record for saving.
// The running session picks the change up on its next UpdateSessionInfo.
func (c *Container) SetServer(serverID string) types.Bot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record.ServerID = serverID
	c.record.UpdatedAt = time.Now()
	return c.record
}

// Status returns the current lifecycle state
func (c *Container) Status() types.BotStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// IsRunning reports whether the bot is online
func (c *Container) IsRunning() bool {
	return c.Status() == types.BotStatusOnline
}

// Info returns the status view. It never calls into the session engine.
func (c *Container) Info() types.BotInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.record.ToInfo(c.status, c.friendCount)
}

// Logs returns the diagnostic log, oldest line first
func (c *Container) Logs() string {
	return c.logs.String()
}

// LogBuffer exposes the diagnostic buffer
func (c *Container) LogBuffer() *botlog.Buffer {
	return c.logs
}

// Storage returns the bot's session storage
func (c *Container) Storage() session.Storage {
	return c.deps.Storage
}

// Start brings the bot online. It is a no-op unless the bot is offline.
// Failures are recorded in the diagnostic log and leave the bot offline.
func (c *Container) Start() {
	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()
	c.start()
}

// Stop takes the bot offline. It is a no-op when the bot is offline.
func (c *Container) Stop() {
	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()
	c.stop()
}

// Restart stops and starts the bot as one transition
func (c *Container) Restart() {
	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()
	c.stop()
	c.start()
}

// Close stops the bot for good. Transitions still queued for a closed
// container do nothing.
func (c *Container) Close() {
	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.stop()
}

func (c *Container) start() {
	c.mu.Lock()
	if c.closed || c.status != types.BotStatusOffline {
		c.mu.Unlock()
		return
	}
	c.status = types.BotStatusStarting
	c.generation++
	gen := c.generation
	record := c.record
	logger := botlog.NewLogger(c.logs, c.zl)
	c.logger = logger
	c.mu.Unlock()

	timer := metrics.NewTimer()
	c.publish(events.EventBotStarting, "")

	sess, err := c.openSession(&record, logger)
	if err == nil {
		err = c.goOnline(gen, sess, logger)
	}
	if err != nil {
		if errors.Is(err, ErrUnexpected) {
			logger.Error("An unexpected error occurred", err)
		} else {
			logger.Error("Failed to create session", err)
		}
		c.mu.Lock()
		c.generation++
		unsubscribe := c.unsubscribe
		c.unsubscribe = nil
		c.mu.Unlock()

		if unsubscribe != nil {
			close(unsubscribe)
		}
		if sess != nil {
			shutdown(sess)
		}

		c.mu.Lock()
		c.status = types.BotStatusOffline
		c.session = nil
		c.mu.Unlock()

		metrics.SessionStartsTotal.WithLabelValues("failure").Inc()
		c.publish(events.EventBotStartFailed, err.Error())
		return
	}

	timer.ObserveDuration(metrics.SessionStartDuration)
	metrics.SessionStartsTotal.WithLabelValues("success").Inc()
}

// openSession constructs a session through the factory and initialises it
// against the bot's current server. The returned session is non-nil
// whenever construction succeeded, even if Init failed.
func (c *Container) openSession(record *types.Bot, logger botlog.Logger) (sess session.Session, err error) {
	err = guard(func() error {
		s, err := c.deps.Factory(record, c.deps.Storage, logger)
		if err != nil {
			return err
		}
		sess = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()

	info, err := c.deps.Registry.ServerSessionInfo(record.ServerID)
	if err != nil {
		return sess, fmt.Errorf("%w: server %q: %w", session.ErrSessionCreation, record.ServerID, err)
	}

	friendSync := session.FriendSyncConfig{
		UpdateInterval: c.cfg.FriendInterval,
		AutoFollow:     true,
		AutoUnfollow:   true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()

	return sess, guard(func() error {
		return sess.Init(ctx, info, friendSync)
	})
}

// goOnline runs the steps that follow a successful Init
func (c *Container) goOnline(gen uint64, sess session.Session, logger botlog.Logger) error {
	return guard(func() error {
		identity := sess.Identity()
		unsubscribe := make(chan struct{})

		c.mu.Lock()
		c.status = types.BotStatusOnline
		c.record.Gamertag = identity.Gamertag
		c.record.XUID = identity.XUID
		c.record.UpdatedAt = time.Now()
		record := c.record
		c.unsubscribe = unsubscribe
		c.mu.Unlock()

		if err := c.deps.Registry.SaveBot(&record); err != nil {
			logger.Error("Failed to save bot", err)
		}

		// Fetch friends now so the first status query has data
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
		if _, err := sess.RefreshFriends(ctx); err != nil {
			logger.Warn("Failed to fetch friend list: " + err.Error())
		}
		cancel()

		scheduler := sess.Scheduler()
		scheduler.ScheduleWithFixedDelay(c.cfg.SessionInterval, c.cfg.SessionInterval, func(ctx context.Context) {
			c.updateSessionInfo(ctx, gen)
		})
		scheduler.ScheduleWithFixedDelay(0, c.cfg.StatsInterval, func(ctx context.Context) {
			c.updateFriendStats(ctx, gen)
		})

		go c.watchRestarts(gen, sess.RestartRequests(), unsubscribe)

		logger.Info(fmt.Sprintf("Bot online as %s (%s)", identity.Gamertag, identity.XUID))
		c.publish(events.EventBotOnline, identity.Gamertag)
		return nil
	})
}

func (c *Container) stop() {
	c.mu.Lock()
	if c.status == types.BotStatusOffline {
		c.mu.Unlock()
		return
	}
	sess := c.session
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	// In-flight refreshes of this generation drop their results
	c.generation++
	c.mu.Unlock()

	if unsubscribe != nil {
		close(unsubscribe)
	}
	if sess != nil {
		shutdown(sess)
	}

	c.mu.Lock()
	c.status = types.BotStatusOffline
	c.session = nil
	c.mu.Unlock()

	c.publish(events.EventBotOffline, "")
}

// watchRestarts waits for one restart request from the session of
// generation gen, or for the container to unsubscribe
func (c *Container) watchRestarts(gen uint64, requests <-chan struct{}, unsubscribe <-chan struct{}) {
	select {
	case <-unsubscribe:
		return
	case _, ok := <-requests:
		if !ok {
			return
		}
	}

	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	c.mu.RLock()
	current := c.generation == gen && c.status == types.BotStatusOnline
	logger := c.logger
	c.mu.RUnlock()
	if !current {
		return
	}

	logger.Warn("Session requested a restart")
	metrics.BotRestartsTotal.Inc()
	c.publish(events.EventBotRestartRequested, "")

	c.stop()
	c.start()
}

// UpdateSessionInfo refreshes the advertised session against the bot's
// current server. No-op unless online.
func (c *Container) UpdateSessionInfo() {
	c.mu.RLock()
	gen := c.generation
	c.mu.RUnlock()

	c.updateSessionInfo(context.Background(), gen)
}

func (c *Container) updateSessionInfo(ctx context.Context, gen uint64) {
	sess, record, logger, ok := c.active(gen)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	info, err := c.deps.Registry.ServerSessionInfo(record.ServerID)
	if err == nil {
		err = sess.Update(ctx, info)
	}

	// Stopped while the update was in flight
	if _, _, _, ok := c.active(gen); !ok {
		return
	}

	if err != nil {
		metrics.SessionUpdatesTotal.WithLabelValues("failure").Inc()
		logger.Error("Failed to update session", err)
		return
	}
	metrics.SessionUpdatesTotal.WithLabelValues("success").Inc()
	logger.Info("Updated session!")
}

// UpdateFriendStats records the latest following count. No-op unless online.
func (c *Container) UpdateFriendStats() {
	c.mu.RLock()
	gen := c.generation
	c.mu.RUnlock()

	c.updateFriendStats(context.Background(), gen)
}

func (c *Container) updateFriendStats(ctx context.Context, gen uint64) {
	sess, record, logger, ok := c.active(gen)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	summary, err := sess.SocialSummary(ctx)
	if err != nil {
		if _, _, _, ok := c.active(gen); ok {
			logger.Error("Failed to fetch social summary", err)
		}
		return
	}

	// Under mu so a stopped generation never sets the gauge after Stop
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == types.BotStatusOnline && c.generation == gen {
		c.friendCount = summary.TargetFollowingCount
		metrics.FriendCount.WithLabelValues(record.ID).Set(float64(summary.TargetFollowingCount))
	}
}

// active returns the session of generation gen if the bot is online with it
func (c *Container) active(gen uint64) (session.Session, types.Bot, botlog.Logger, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.status != types.BotStatusOnline || c.generation != gen || c.session == nil {
		return nil, types.Bot{}, botlog.Logger{}, false
	}
	return c.session, c.record, c.logger, true
}

// DumpSession asks the session, if any, to persist its current document
func (c *Container) DumpSession() error {
	c.mu.RLock()
	sess := c.session
	c.mu.RUnlock()

	if sess == nil {
		return nil
	}
	return sess.DumpSession()
}

// Friends returns the cached friend list of an online bot
func (c *Container) Friends() ([]types.Friend, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.status != types.BotStatusOnline || c.session == nil {
		return nil, ErrNotRunning
	}
	return c.session.CachedFriends(), nil
}

// Unfollow removes a friend from an online bot
func (c *Container) Unfollow(xuid string) error {
	c.mu.RLock()
	online := c.status == types.BotStatusOnline && c.session != nil
	sess := c.session
	c.mu.RUnlock()

	if !online {
		return ErrNotRunning
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	return sess.Unfollow(ctx, xuid)
}

func (c *Container) publish(t events.EventType, message string) {
	if c.deps.Events == nil {
		return
	}
	c.deps.Events.Publish(events.NewBotEvent(t, c.ID(), message))
}

// guard runs fn, converting a panic or an unclassified error into
// ErrUnexpected
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrUnexpected, r)
		}
	}()

	err = fn()
	if err == nil ||
		errors.Is(err, session.ErrSessionCreation) ||
		errors.Is(err, session.ErrSessionUpdate) ||
		errors.Is(err, ErrUnexpected) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnexpected, err)
}

func shutdown(sess session.Session) {
	defer func() {
		_ = recover()
	}()
	sess.Shutdown()
}
