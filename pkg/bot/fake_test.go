package bot

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/herald/pkg/botlog"
	"github.com/cuemby/herald/pkg/events"
	"github.com/cuemby/herald/pkg/log"
	"github.com/cuemby/herald/pkg/session"
	"github.com/cuemby/herald/pkg/types"
)

func TestMain(m *testing.M) {
	log.Logger = zerolog.Nop()
	os.Exit(m.Run())
}

// fakeEngine records every call made by the sessions it creates
type fakeEngine struct {
	mu sync.Mutex

	factoryErr error
	initErr    error
	initPanic  bool
	initDelay  time.Duration
	updateErr  error
	blockOnUpd bool
	following  int

	// summaryGate, when set, holds SocialSummary until closed
	summaryGate chan struct{}

	calls        []string
	initCalls    int
	updateCalls  int
	summaryCalls int
	refreshCalls int
	dumpCalls    int
	unfollowed   []string

	sessions []*fakeSession
}

func (e *fakeEngine) factory(bot *types.Bot, st session.Storage, logger botlog.Logger) (session.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.factoryErr != nil {
		return nil, e.factoryErr
	}
	s := &fakeSession{
		engine:  e,
		sched:   session.NewScheduler(),
		restart: make(chan struct{}, 1),
	}
	e.sessions = append(e.sessions, s)
	return s, nil
}

func (e *fakeEngine) record(call string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
}

func (e *fakeEngine) snapshot() fakeEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fakeEngine{
		calls:        append([]string(nil), e.calls...),
		initCalls:    e.initCalls,
		updateCalls:  e.updateCalls,
		summaryCalls: e.summaryCalls,
		refreshCalls: e.refreshCalls,
		dumpCalls:    e.dumpCalls,
		unfollowed:   append([]string(nil), e.unfollowed...),
	}
}

func (e *fakeEngine) lastSession() *fakeSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.sessions) == 0 {
		return nil
	}
	return e.sessions[len(e.sessions)-1]
}

type fakeSession struct {
	engine  *fakeEngine
	sched   *session.Scheduler
	restart chan struct{}
}

func (s *fakeSession) Init(ctx context.Context, info types.SessionInfo, cfg session.FriendSyncConfig) error {
	e := s.engine
	e.mu.Lock()
	e.initCalls++
	e.calls = append(e.calls, "init")
	delay, err, shouldPanic := e.initDelay, e.initErr, e.initPanic
	e.mu.Unlock()

	time.Sleep(delay)
	if shouldPanic {
		panic("engine exploded")
	}
	return err
}

func (s *fakeSession) Update(ctx context.Context, info types.SessionInfo) error {
	e := s.engine
	e.mu.Lock()
	e.updateCalls++
	block, err := e.blockOnUpd, e.updateErr
	e.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (s *fakeSession) Shutdown() {
	s.engine.record("shutdown")
	s.sched.Stop()
}

func (s *fakeSession) SocialSummary(ctx context.Context) (session.SocialSummary, error) {
	e := s.engine
	e.mu.Lock()
	e.summaryCalls++
	following, gate := e.following, e.summaryGate
	e.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return session.SocialSummary{}, ctx.Err()
		}
	}
	return session.SocialSummary{TargetFollowingCount: following}, nil
}

func (s *fakeSession) RefreshFriends(ctx context.Context) ([]types.Friend, error) {
	e := s.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshCalls++
	return s.friends(), nil
}

func (s *fakeSession) CachedFriends() []types.Friend {
	return s.friends()
}

func (s *fakeSession) friends() []types.Friend {
	return []types.Friend{{XUID: "2535400000000002", Gamertag: "Friend", Following: true}}
}

func (s *fakeSession) Unfollow(ctx context.Context, xuid string) error {
	e := s.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unfollowed = append(e.unfollowed, xuid)
	return nil
}

func (s *fakeSession) DumpSession() error {
	e := s.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dumpCalls++
	return nil
}

func (s *fakeSession) Identity() session.Identity {
	return session.Identity{Gamertag: "HeraldBot", XUID: "2535400000000001"}
}

func (s *fakeSession) Scheduler() *session.Scheduler {
	return s.sched
}

func (s *fakeSession) RestartRequests() <-chan struct{} {
	return s.restart
}

// fakeRegistry records saves and serves a fixed session info
type fakeRegistry struct {
	mu        sync.Mutex
	saved     []types.Bot
	lookups   []string
	lookupErr error
}

func (r *fakeRegistry) SaveBot(bot *types.Bot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, *bot)
	return nil
}

func (r *fakeRegistry) ServerSessionInfo(serverID string) (types.SessionInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = append(r.lookups, serverID)
	if r.lookupErr != nil {
		return types.SessionInfo{}, r.lookupErr
	}
	return types.SessionInfo{HostName: "Herald", WorldName: "World", IP: "127.0.0.1", Port: 19132}, nil
}

func (r *fakeRegistry) savedBots() []types.Bot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Bot(nil), r.saved...)
}

func (r *fakeRegistry) lookedUp() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lookups...)
}

// recordingPublisher keeps published event types
type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(ev *events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, string(ev.Type))
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}

var errBoom = errors.New("boom")

func testConfig() Config {
	return Config{
		LogSize:         50,
		SessionInterval: time.Hour,
		FriendInterval:  time.Hour,
		StatsInterval:   time.Hour,
		Timeout:         time.Second,
	}
}

func newTestContainer(t *testing.T, engine *fakeEngine, registry *fakeRegistry) *Container {
	t.Helper()
	return newTestContainerWith(t, engine, registry, nil, testConfig())
}

func newTestContainerWith(t *testing.T, engine *fakeEngine, registry *fakeRegistry, pub Publisher, cfg Config) *Container {
	t.Helper()
	c := NewContainer(types.Bot{ID: "bot-1", ServerID: "server-1"}, Dependencies{
		Registry: registry,
		Factory:  engine.factory,
		Events:   pub,
	}, cfg)
	t.Cleanup(c.Stop)
	return c
}

func errorEntries(c *Container) []botlog.Entry {
	var out []botlog.Entry
	for _, e := range c.LogBuffer().Entries() {
		if e.Level == botlog.LevelError {
			out = append(out, e)
		}
	}
	return out
}
