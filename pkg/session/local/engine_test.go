package local

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/herald/pkg/botlog"
	"github.com/cuemby/herald/pkg/session"
	"github.com/cuemby/herald/pkg/types"
)

type memStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{data: make(map[string][]byte)}
}

func (m *memStorage) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, session.ErrNotFound
	}
	return v, nil
}

// failingStorage fails reads of one key until cleared
type failingStorage struct {
	*memStorage
	failKey string
}

var errDiskRead = errors.New("disk read failed")

func (f *failingStorage) Get(key string) ([]byte, error) {
	if key == f.failKey {
		return nil, errDiskRead
	}
	return f.memStorage.Get(key)
}

func (m *memStorage) Put(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func (m *memStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

var validInfo = types.SessionInfo{
	HostName:  "Herald",
	WorldName: "World",
	IP:        "127.0.0.1",
	Port:      19132,
}

func newTestEngine(t *testing.T, st session.Storage) (*Engine, *botlog.Buffer) {
	t.Helper()
	buf := botlog.NewBuffer(50)
	factory := NewFactory(Options{})
	sess, err := factory(&types.Bot{ID: "bot-1"}, st, botlog.NewLogger(buf, zerolog.Nop()))
	require.NoError(t, err)
	e := sess.(*Engine)
	t.Cleanup(e.Shutdown)
	return e, buf
}

func TestFactoryRequiresStorage(t *testing.T) {
	_, err := NewFactory(Options{})(&types.Bot{ID: "bot-1"}, nil, botlog.Logger{})
	assert.ErrorIs(t, err, session.ErrSessionCreation)
}

func TestInitValidatesServer(t *testing.T) {
	tests := []struct {
		name string
		info types.SessionInfo
	}{
		{name: "missing host", info: types.SessionInfo{Port: 19132}},
		{name: "missing port", info: types.SessionInfo{IP: "127.0.0.1"}},
		{name: "port out of range", info: types.SessionInfo{IP: "127.0.0.1", Port: 70000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t, newMemStorage())
			err := e.Init(context.Background(), tt.info, session.FriendSyncConfig{})
			assert.ErrorIs(t, err, session.ErrSessionCreation)
		})
	}
}

func TestInitPersistsIdentity(t *testing.T) {
	st := newMemStorage()

	e, buf := newTestEngine(t, st)
	require.NoError(t, e.Init(context.Background(), validInfo, session.FriendSyncConfig{}))

	identity := e.Identity()
	assert.NotEmpty(t, identity.Gamertag)
	assert.Regexp(t, `^\d{16}$`, identity.XUID)
	assert.Contains(t, buf.String(), "[session] Created session")

	// A new session for the same bot signs in as the same identity
	e2, _ := newTestEngine(t, st)
	require.NoError(t, e2.Init(context.Background(), validInfo, session.FriendSyncConfig{}))
	assert.Equal(t, identity, e2.Identity())
}

func TestInitKeepsProfileOnReadError(t *testing.T) {
	st := newMemStorage()
	e, _ := newTestEngine(t, st)
	require.NoError(t, e.Init(context.Background(), validInfo, session.FriendSyncConfig{}))
	identity := e.Identity()
	saved := append([]byte(nil), st.data[ProfileKey]...)

	flaky := &failingStorage{memStorage: st, failKey: ProfileKey}
	e2, _ := newTestEngine(t, flaky)
	err := e2.Init(context.Background(), validInfo, session.FriendSyncConfig{})
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrSessionCreation)
	assert.ErrorIs(t, err, errDiskRead)
	assert.Equal(t, saved, st.data[ProfileKey])

	// Once reads recover the original identity is still there
	flaky.failKey = ""
	e3, _ := newTestEngine(t, flaky)
	require.NoError(t, e3.Init(context.Background(), validInfo, session.FriendSyncConfig{}))
	assert.Equal(t, identity, e3.Identity())
}

func TestInitFailsOnFriendsReadError(t *testing.T) {
	st := &failingStorage{memStorage: newMemStorage(), failKey: FriendsKey}
	e, _ := newTestEngine(t, st)

	err := e.Init(context.Background(), validInfo, session.FriendSyncConfig{})
	assert.ErrorIs(t, err, session.ErrSessionCreation)
	assert.ErrorIs(t, err, errDiskRead)
}

func TestUpdate(t *testing.T) {
	e, _ := newTestEngine(t, newMemStorage())
	require.NoError(t, e.Init(context.Background(), validInfo, session.FriendSyncConfig{}))

	updated := validInfo
	updated.Players = 5
	require.NoError(t, e.Update(context.Background(), updated))

	require.NoError(t, e.DumpSession())
	data, err := e.storage.Get(session.CurrentSessionKey)
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 5, doc.Info.Players)
	assert.NotEmpty(t, doc.SessionID)
	assert.Equal(t, e.Identity().XUID, doc.XUID)
}

func TestRepeatedUpdateFailuresRequestRestart(t *testing.T) {
	e, _ := newTestEngine(t, newMemStorage())
	require.NoError(t, e.Init(context.Background(), validInfo, session.FriendSyncConfig{}))

	bad := types.SessionInfo{}

	for i := 0; i < DefaultFailureThreshold-1; i++ {
		assert.ErrorIs(t, e.Update(context.Background(), bad), session.ErrSessionUpdate)
	}
	// A success resets the count
	require.NoError(t, e.Update(context.Background(), validInfo))
	for i := 0; i < DefaultFailureThreshold-1; i++ {
		assert.ErrorIs(t, e.Update(context.Background(), bad), session.ErrSessionUpdate)
	}

	select {
	case <-e.RestartRequests():
		t.Fatal("restart requested too early")
	default:
	}

	assert.ErrorIs(t, e.Update(context.Background(), bad), session.ErrSessionUpdate)

	select {
	case <-e.RestartRequests():
	default:
		t.Fatal("expected a restart request")
	}
}

func TestCallsAfterShutdown(t *testing.T) {
	e, _ := newTestEngine(t, newMemStorage())
	require.NoError(t, e.Init(context.Background(), validInfo, session.FriendSyncConfig{}))

	e.Shutdown()
	e.Shutdown()

	assert.True(t, e.Scheduler().Stopped())
	assert.ErrorIs(t, e.Update(context.Background(), validInfo), session.ErrShutdown)
	_, err := e.SocialSummary(context.Background())
	assert.ErrorIs(t, err, session.ErrShutdown)
	assert.ErrorIs(t, e.Unfollow(context.Background(), "2535400000000002"), session.ErrShutdown)
}

func seedFriends(t *testing.T, st session.Storage, friends []types.Friend) {
	t.Helper()
	data, err := json.Marshal(friends)
	require.NoError(t, err)
	require.NoError(t, st.Put(FriendsKey, data))
}

func TestFriendSync(t *testing.T) {
	st := newMemStorage()
	seedFriends(t, st, []types.Friend{
		{XUID: "2535400000000001", Gamertag: "Alpha", Follower: true},
		{XUID: "2535400000000002", Gamertag: "Bravo", Following: true},
		{XUID: "2535400000000003", Gamertag: "Charlie", Following: true, Follower: true},
	})

	e, buf := newTestEngine(t, st)
	require.NoError(t, e.Init(context.Background(), validInfo, session.FriendSyncConfig{
		UpdateInterval: 10 * time.Millisecond,
		AutoFollow:     true,
		AutoUnfollow:   true,
	}))

	assert.Eventually(t, func() bool {
		return len(e.CachedFriends()) == 2
	}, time.Second, 5*time.Millisecond)

	friends := e.CachedFriends()
	assert.Equal(t, "Alpha", friends[0].Gamertag)
	assert.True(t, friends[0].Following)
	assert.Equal(t, "Charlie", friends[1].Gamertag)

	summary, err := e.SocialSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TargetFollowingCount)
	assert.Equal(t, 2, summary.TargetFollowerCount)
	assert.Contains(t, buf.String(), "Friend sync: followed 1, unfollowed 1")

	// Persisted for the next session
	refreshed, err := e.RefreshFriends(context.Background())
	require.NoError(t, err)
	assert.Len(t, refreshed, 2)
}

func TestUnfollow(t *testing.T) {
	st := newMemStorage()
	seedFriends(t, st, []types.Friend{
		{XUID: "2535400000000001", Gamertag: "Alpha", Following: true},
		{XUID: "2535400000000002", Gamertag: "Bravo", Following: true},
	})

	e, _ := newTestEngine(t, st)
	require.NoError(t, e.Init(context.Background(), validInfo, session.FriendSyncConfig{}))

	assert.ErrorIs(t, e.Unfollow(context.Background(), "2535499999999999"), ErrNotFriend)

	require.NoError(t, e.Unfollow(context.Background(), "2535400000000001"))
	friends := e.CachedFriends()
	require.Len(t, friends, 1)
	assert.Equal(t, "Bravo", friends[0].Gamertag)

	refreshed, err := e.RefreshFriends(context.Background())
	require.NoError(t, err)
	assert.Equal(t, friends, refreshed)
}

func TestCachedFriendsEmpty(t *testing.T) {
	e, _ := newTestEngine(t, newMemStorage())
	require.NoError(t, e.Init(context.Background(), validInfo, session.FriendSyncConfig{}))

	friends := e.CachedFriends()
	assert.NotNil(t, friends)
	assert.Empty(t, friends)
}
