package bot

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/herald/pkg/botlog"
	"github.com/cuemby/herald/pkg/events"
	"github.com/cuemby/herald/pkg/metrics"
	"github.com/cuemby/herald/pkg/session"
	"github.com/cuemby/herald/pkg/types"
)

func TestNewContainerIsOffline(t *testing.T) {
	c := newTestContainer(t, &fakeEngine{}, &fakeRegistry{})

	assert.Equal(t, "bot-1", c.ID())
	assert.Equal(t, types.BotStatusOffline, c.Status())
	assert.False(t, c.IsRunning())
	assert.Equal(t, "", c.Logs())
	assert.Equal(t, 50, c.LogBuffer().Cap())

	info := c.Info()
	assert.Equal(t, "server-1", info.ServerID)
	assert.Equal(t, 0, info.FriendCount)
}

func TestStartSuccess(t *testing.T) {
	engine := &fakeEngine{following: 7}
	registry := &fakeRegistry{}
	c := newTestContainer(t, engine, registry)

	c.Start()

	require.Equal(t, types.BotStatusOnline, c.Status())
	info := c.Info()
	assert.Equal(t, "HeraldBot", info.Gamertag)
	assert.Equal(t, "2535400000000001", info.XUID)

	saved := registry.savedBots()
	require.Len(t, saved, 1)
	assert.Equal(t, "HeraldBot", saved[0].Gamertag)
	assert.Equal(t, "2535400000000001", saved[0].XUID)
	assert.Equal(t, []string{"server-1"}, registry.lookedUp())

	snap := engine.snapshot()
	assert.Equal(t, 1, snap.initCalls)
	assert.Equal(t, 1, snap.refreshCalls)

	// Stats refresh runs immediately after going online
	assert.Eventually(t, func() bool {
		return c.Info().FriendCount == 7
	}, time.Second, 5*time.Millisecond)

	assert.Contains(t, c.Logs(), "Bot online as HeraldBot (2535400000000001)")
	assert.Empty(t, errorEntries(c))
}

func TestStartWhileOnlineIsNoop(t *testing.T) {
	engine := &fakeEngine{}
	c := newTestContainer(t, engine, &fakeRegistry{})

	c.Start()
	c.Start()

	assert.Equal(t, 1, engine.snapshot().initCalls)
	assert.Equal(t, types.BotStatusOnline, c.Status())
}

func TestStartFailures(t *testing.T) {
	tests := []struct {
		name      string
		engine    *fakeEngine
		registry  *fakeRegistry
		wantLog   string
		wantInits int
		wantCalls []string
	}{
		{
			name:      "session creation error",
			engine:    &fakeEngine{initErr: fmt.Errorf("%w: login rejected", session.ErrSessionCreation)},
			registry:  &fakeRegistry{},
			wantLog:   "Failed to create session",
			wantInits: 1,
			wantCalls: []string{"init", "shutdown"},
		},
		{
			name:      "unclassified init error",
			engine:    &fakeEngine{initErr: errBoom},
			registry:  &fakeRegistry{},
			wantLog:   "An unexpected error occurred",
			wantInits: 1,
			wantCalls: []string{"init", "shutdown"},
		},
		{
			name:      "init panic",
			engine:    &fakeEngine{initPanic: true},
			registry:  &fakeRegistry{},
			wantLog:   "An unexpected error occurred",
			wantInits: 1,
			wantCalls: []string{"init", "shutdown"},
		},
		{
			name:      "factory error",
			engine:    &fakeEngine{factoryErr: errBoom},
			registry:  &fakeRegistry{},
			wantLog:   "An unexpected error occurred",
			wantInits: 0,
			wantCalls: nil,
		},
		{
			name:      "unknown server",
			engine:    &fakeEngine{},
			registry:  &fakeRegistry{lookupErr: errBoom},
			wantLog:   "Failed to create session",
			wantInits: 0,
			wantCalls: []string{"shutdown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestContainer(t, tt.engine, tt.registry)

			c.Start()

			assert.Equal(t, types.BotStatusOffline, c.Status())
			assert.Empty(t, tt.registry.savedBots())

			errs := errorEntries(c)
			require.Len(t, errs, 1)
			assert.True(t, strings.HasPrefix(errs[0].Text, tt.wantLog), errs[0].Text)

			snap := tt.engine.snapshot()
			assert.Equal(t, tt.wantInits, snap.initCalls)
			assert.Equal(t, tt.wantCalls, snap.calls)

			_, err := c.Friends()
			assert.ErrorIs(t, err, ErrNotRunning)
		})
	}
}

func TestStartAfterFailureRetries(t *testing.T) {
	engine := &fakeEngine{initErr: errBoom}
	c := newTestContainer(t, engine, &fakeRegistry{})

	c.Start()
	require.Equal(t, types.BotStatusOffline, c.Status())

	engine.mu.Lock()
	engine.initErr = nil
	engine.mu.Unlock()

	c.Start()
	assert.Equal(t, types.BotStatusOnline, c.Status())
	assert.Equal(t, 2, engine.snapshot().initCalls)
}

func TestConcurrentStartInitialisesOnce(t *testing.T) {
	engine := &fakeEngine{initDelay: 50 * time.Millisecond}
	c := newTestContainer(t, engine, &fakeRegistry{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Start()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, engine.snapshot().initCalls)
	assert.Equal(t, types.BotStatusOnline, c.Status())
}

func TestStopWhileOfflineIsNoop(t *testing.T) {
	engine := &fakeEngine{}
	c := newTestContainer(t, engine, &fakeRegistry{})
	c.LogBuffer().Append(botlog.LevelInfo, "before")

	c.Stop()

	assert.Equal(t, types.BotStatusOffline, c.Status())
	assert.Equal(t, 1, c.LogBuffer().Len())
	assert.Empty(t, engine.snapshot().calls)
}

func TestCloseBlocksLaterStarts(t *testing.T) {
	engine := &fakeEngine{}
	c := newTestContainer(t, engine, &fakeRegistry{})

	c.Start()
	require.True(t, c.IsRunning())

	c.Close()
	assert.Equal(t, types.BotStatusOffline, c.Status())

	c.Start()
	c.Restart()
	assert.Equal(t, types.BotStatusOffline, c.Status())
	assert.Equal(t, 1, engine.snapshot().initCalls)
}

func TestStopShutsDownSession(t *testing.T) {
	engine := &fakeEngine{}
	c := newTestContainer(t, engine, &fakeRegistry{})

	c.Start()
	require.True(t, c.IsRunning())

	c.Stop()

	assert.Equal(t, types.BotStatusOffline, c.Status())
	assert.Equal(t, []string{"init", "shutdown"}, engine.snapshot().calls)
	assert.True(t, engine.lastSession().sched.Stopped())

	c.Stop()
	assert.Equal(t, []string{"init", "shutdown"}, engine.snapshot().calls)
}

func TestRestart(t *testing.T) {
	engine := &fakeEngine{}
	c := newTestContainer(t, engine, &fakeRegistry{})

	c.Start()
	c.Restart()

	assert.Equal(t, types.BotStatusOnline, c.Status())
	assert.Equal(t, []string{"init", "shutdown", "init"}, engine.snapshot().calls)
}

func TestRestartWhileOfflineStarts(t *testing.T) {
	engine := &fakeEngine{}
	c := newTestContainer(t, engine, &fakeRegistry{})

	c.Restart()

	assert.Equal(t, types.BotStatusOnline, c.Status())
	assert.Equal(t, []string{"init"}, engine.snapshot().calls)
}

func TestUpdatesWhileOfflineAreNoops(t *testing.T) {
	engine := &fakeEngine{}
	registry := &fakeRegistry{}
	c := newTestContainer(t, engine, registry)

	c.UpdateSessionInfo()
	c.UpdateFriendStats()

	c.Start()
	c.Stop()
	before := engine.snapshot()

	c.UpdateSessionInfo()
	c.UpdateFriendStats()

	after := engine.snapshot()
	assert.Equal(t, before.updateCalls, after.updateCalls)
	assert.Equal(t, before.summaryCalls, after.summaryCalls)
	assert.Equal(t, 0, after.updateCalls)
	assert.Empty(t, errorEntries(c))
}

func TestUpdateSessionInfo(t *testing.T) {
	engine := &fakeEngine{}
	registry := &fakeRegistry{}
	c := newTestContainer(t, engine, registry)
	c.Start()

	c.SetServer("server-2")
	c.UpdateSessionInfo()

	assert.Equal(t, 1, engine.snapshot().updateCalls)
	assert.Equal(t, []string{"server-1", "server-2"}, registry.lookedUp())
	assert.Contains(t, c.Logs(), "Updated session!")
	assert.Equal(t, "server-2", c.Info().ServerID)
}

func TestUpdateSessionInfoFailureKeepsOnline(t *testing.T) {
	engine := &fakeEngine{updateErr: fmt.Errorf("%w: 503", session.ErrSessionUpdate)}
	c := newTestContainer(t, engine, &fakeRegistry{})
	c.Start()

	c.UpdateSessionInfo()

	assert.Equal(t, types.BotStatusOnline, c.Status())
	errs := errorEntries(c)
	require.Len(t, errs, 1)
	assert.True(t, strings.HasPrefix(errs[0].Text, "Failed to update session"))
}

func TestStopDuringInFlightUpdate(t *testing.T) {
	engine := &fakeEngine{blockOnUpd: true}
	cfg := testConfig()
	cfg.SessionInterval = 10 * time.Millisecond
	c := newTestContainerWith(t, engine, &fakeRegistry{}, nil, cfg)
	c.Start()

	require.Eventually(t, func() bool {
		return engine.snapshot().updateCalls >= 1
	}, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while an update was in flight")
	}

	assert.Equal(t, types.BotStatusOffline, c.Status())
	assert.NotContains(t, c.Logs(), "Failed to update session")
}

func TestFriendStatsAfterStopAreDropped(t *testing.T) {
	const botID = "bot-late-stats"
	gate := make(chan struct{})
	engine := &fakeEngine{following: 9, summaryGate: gate}
	c := NewContainer(types.Bot{ID: botID, ServerID: "server-1"}, Dependencies{
		Registry: &fakeRegistry{},
		Factory:  engine.factory,
	}, testConfig())
	t.Cleanup(c.Stop)

	c.Start()
	require.True(t, c.IsRunning())

	// The scheduled refresh and this direct one both wait on the gate
	done := make(chan struct{})
	go func() {
		c.UpdateFriendStats()
		close(done)
	}()
	require.Eventually(t, func() bool {
		return engine.snapshot().summaryCalls >= 2
	}, time.Second, 5*time.Millisecond)

	c.Stop()
	close(gate)
	<-done

	assert.Equal(t, 0, c.Info().FriendCount)
	assert.False(t, metrics.FriendCount.DeleteLabelValues(botID), "stopped session set the friend gauge")
}

func TestFriendStatsSetGauge(t *testing.T) {
	const botID = "bot-stats-gauge"
	engine := &fakeEngine{following: 4}
	c := NewContainer(types.Bot{ID: botID, ServerID: "server-1"}, Dependencies{
		Registry: &fakeRegistry{},
		Factory:  engine.factory,
	}, testConfig())
	t.Cleanup(c.Stop)

	c.Start()
	require.Eventually(t, func() bool {
		return c.Info().FriendCount == 4
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(4), testutil.ToFloat64(metrics.FriendCount.WithLabelValues(botID)))
}

func TestEngineRequestedRestart(t *testing.T) {
	engine := &fakeEngine{}
	pub := &recordingPublisher{}
	c := newTestContainerWith(t, engine, &fakeRegistry{}, pub, testConfig())
	c.Start()

	engine.lastSession().restart <- struct{}{}

	assert.Eventually(t, func() bool {
		return engine.snapshot().initCalls == 2 && c.IsRunning()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"init", "shutdown", "init"}, engine.snapshot().calls)
	assert.Contains(t, c.Logs(), "Session requested a restart")
	assert.Contains(t, pub.published(), string(events.EventBotRestartRequested))
}

func TestRestartRequestAfterStopIsIgnored(t *testing.T) {
	engine := &fakeEngine{}
	c := newTestContainer(t, engine, &fakeRegistry{})
	c.Start()
	sess := engine.lastSession()
	c.Stop()

	sess.restart <- struct{}{}
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, types.BotStatusOffline, c.Status())
	assert.Equal(t, 1, engine.snapshot().initCalls)
}

func TestLifecycleEvents(t *testing.T) {
	pub := &recordingPublisher{}
	c := newTestContainerWith(t, &fakeEngine{}, &fakeRegistry{}, pub, testConfig())

	c.Start()
	c.Stop()

	assert.Equal(t, []string{
		string(events.EventBotStarting),
		string(events.EventBotOnline),
		string(events.EventBotOffline),
	}, pub.published())
}

func TestFriendsAndUnfollow(t *testing.T) {
	engine := &fakeEngine{}
	c := newTestContainer(t, engine, &fakeRegistry{})

	_, err := c.Friends()
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.ErrorIs(t, c.Unfollow("2535400000000002"), ErrNotRunning)

	c.Start()

	friends, err := c.Friends()
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "Friend", friends[0].Gamertag)

	require.NoError(t, c.Unfollow("2535400000000002"))
	assert.Equal(t, []string{"2535400000000002"}, engine.snapshot().unfollowed)
}

func TestDumpSession(t *testing.T) {
	engine := &fakeEngine{}
	c := newTestContainer(t, engine, &fakeRegistry{})

	require.NoError(t, c.DumpSession())
	assert.Equal(t, 0, engine.snapshot().dumpCalls)

	c.Start()
	require.NoError(t, c.DumpSession())
	assert.Equal(t, 1, engine.snapshot().dumpCalls)
}

func TestGuard(t *testing.T) {
	assert.NoError(t, guard(func() error { return nil }))

	err := guard(func() error { return session.ErrSessionCreation })
	assert.ErrorIs(t, err, session.ErrSessionCreation)
	assert.NotErrorIs(t, err, ErrUnexpected)

	err = guard(func() error { return errBoom })
	assert.ErrorIs(t, err, ErrUnexpected)
	assert.ErrorIs(t, err, errBoom)

	err = guard(func() error { panic("boom") })
	assert.ErrorIs(t, err, ErrUnexpected)
	assert.Contains(t, err.Error(), "panic: boom")
}
