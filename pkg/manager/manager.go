package manager

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/herald/pkg/bot"
	"github.com/cuemby/herald/pkg/events"
	"github.com/cuemby/herald/pkg/log"
	"github.com/cuemby/herald/pkg/metrics"
	"github.com/cuemby/herald/pkg/session"
	"github.com/cuemby/herald/pkg/storage"
	"github.com/cuemby/herald/pkg/types"
)

var (
	ErrBotNotFound    = errors.New("bot not found")
	ErrServerNotFound = errors.New("server not found")
	ErrServerInUse    = errors.New("server is in use")
)

// Manager owns every bot container, the servers they target and the shared
// task pool
type Manager struct {
	cfg         Config
	store       storage.Store
	factory     session.Factory
	pool        *Pool
	eventBroker *events.Broker
	logger      zerolog.Logger

	mu   sync.RWMutex
	bots map[string]*bot.Container
}

// Config holds configuration for creating a Manager
type Config struct {
	Bot     bot.Config
	Workers int
}

// DefaultConfig returns the default manager configuration
func DefaultConfig() Config {
	return Config{
		Bot:     bot.DefaultConfig(),
		Workers: 8,
	}
}

// NewManager creates a new Manager instance
func NewManager(cfg Config, store storage.Store, factory session.Factory) *Manager {
	// Create event broker
	eventBroker := events.NewBroker()
	eventBroker.Start()

	return &Manager{
		cfg:         cfg,
		store:       store,
		factory:     factory,
		pool:        NewPool(cfg.Workers),
		eventBroker: eventBroker,
		logger:      log.WithComponent("manager"),
		bots:        make(map[string]*bot.Container),
	}
}

// Load creates an offline container for every stored bot
func (m *Manager) Load() error {
	records, err := m.store.ListBots()
	if err != nil {
		return fmt.Errorf("failed to list bots: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range records {
		if _, ok := m.bots[record.ID]; ok {
			continue
		}
		m.bots[record.ID] = m.newContainer(*record)
	}

	m.logger.Info().Int("bots", len(records)).Msg("Loaded bots")
	return nil
}

// StartAll starts every bot on the pool
func (m *Manager) StartAll() {
	for _, c := range m.containers() {
		m.pool.Submit("start", c.Start)
	}
}

func (m *Manager) newContainer(record types.Bot) *bot.Container {
	return bot.NewContainer(record, bot.Dependencies{
		Registry: m,
		Factory:  m.factory,
		Storage:  m.store.SessionStorage(record.ID),
		Events:   m.eventBroker,
	}, m.cfg.Bot)
}

// AddBot creates and stores a new offline bot targeting the first server
func (m *Manager) AddBot() (*bot.Container, error) {
	servers, err := m.ListServers()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	record := types.Bot{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(servers) > 0 {
		record.ServerID = servers[0].ID
	}

	if err := m.store.SaveBot(&record); err != nil {
		return nil, fmt.Errorf("failed to save bot: %w", err)
	}

	c := m.newContainer(record)
	m.mu.Lock()
	m.bots[record.ID] = c
	m.mu.Unlock()

	m.logger.Info().Str("bot_id", record.ID).Str("server_id", record.ServerID).Msg("Bot created")
	ev := events.NewBotEvent(events.EventBotCreated, record.ID, "")
	ev.ServerID = record.ServerID
	m.PublishEvent(ev)
	return c, nil
}

// CreateBot adds a bot and starts it on the pool
func (m *Manager) CreateBot() (*bot.Container, error) {
	c, err := m.AddBot()
	if err != nil {
		return nil, err
	}
	m.pool.Submit("start", c.Start)
	return c, nil
}

// Bot returns the container for id
func (m *Manager) Bot(id string) (*bot.Container, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.bots[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBotNotFound, id)
	}
	return c, nil
}

// Bots returns the status view of every bot, ordered by ID
func (m *Manager) Bots() []types.BotInfo {
	containers := m.containers()
	infos := make([]types.BotInfo, 0, len(containers))
	for _, c := range containers {
		infos = append(infos, c.Info())
	}
	return infos
}

// containers returns every container ordered by ID
func (m *Manager) containers() []*bot.Container {
	m.mu.RLock()
	out := make([]*bot.Container, 0, len(m.bots))
	for _, c := range m.bots {
		out = append(out, c)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// DeleteBot stops the bot and removes it with its session data
func (m *Manager) DeleteBot(id string) error {
	m.mu.Lock()
	c, ok := m.bots[id]
	if ok {
		delete(m.bots, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrBotNotFound, id)
	}

	c.Close()
	metrics.FriendCount.DeleteLabelValues(id)

	if err := m.store.DeleteBot(id); err != nil {
		return fmt.Errorf("failed to delete bot: %w", err)
	}
	if err := m.store.DeleteBotSessions(id); err != nil {
		return fmt.Errorf("failed to delete bot sessions: %w", err)
	}

	m.logger.Info().Str("bot_id", id).Msg("Bot deleted")
	m.PublishEvent(events.NewBotEvent(events.EventBotDeleted, id, ""))
	return nil
}

// Logs returns a bot's diagnostic log
func (m *Manager) Logs(id string) (string, error) {
	c, err := m.Bot(id)
	if err != nil {
		return "", err
	}
	return c.Logs(), nil
}

// UpdateBotServer retargets a bot and refreshes its session on the pool
func (m *Manager) UpdateBotServer(id, serverID string) error {
	c, err := m.Bot(id)
	if err != nil {
		return err
	}
	if _, err := m.GetServer(serverID); err != nil {
		return err
	}

	record := c.SetServer(serverID)
	if err := m.SaveBot(&record); err != nil {
		return err
	}

	m.pool.Submit("update_session", c.UpdateSessionInfo)
	ev := events.NewBotEvent(events.EventBotServerChanged, id, "")
	ev.ServerID = serverID
	m.PublishEvent(ev)
	return nil
}

// Submit runs fn on the shared pool
func (m *Manager) Submit(name string, fn func()) bool {
	return m.pool.Submit(name, fn)
}

// SaveBot persists a bot record
func (m *Manager) SaveBot(record *types.Bot) error {
	if err := m.store.SaveBot(record); err != nil {
		return fmt.Errorf("failed to save bot %s: %w", record.ID, err)
	}
	return nil
}

// ServerSessionInfo returns the session info bots broadcast for serverID
func (m *Manager) ServerSessionInfo(serverID string) (types.SessionInfo, error) {
	server, err := m.GetServer(serverID)
	if err != nil {
		return types.SessionInfo{}, err
	}

	info := server.SessionInfo
	info.IP = server.Hostname
	info.Port = server.Port
	return info, nil
}

// CreateServer stores a new server, assigning an ID if none is set
func (m *Manager) CreateServer(server *types.Server) error {
	if server.ID == "" {
		server.ID = uuid.New().String()
	}
	server.LastUpdated = time.Now()

	if err := m.store.SaveServer(server); err != nil {
		return fmt.Errorf("failed to save server: %w", err)
	}

	logger := log.WithServerID(server.ID)
	logger.Info().Str("hostname", server.Hostname).Int("port", server.Port).Msg("Server created")
	m.PublishEvent(events.NewServerEvent(events.EventServerCreated, server.ID))
	return nil
}

// GetServer retrieves a server by ID
func (m *Manager) GetServer(id string) (*types.Server, error) {
	server, err := m.store.GetServer(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrServerNotFound, id)
	}
	return server, err
}

// ListServers returns all servers ordered by ID
func (m *Manager) ListServers() ([]*types.Server, error) {
	servers, err := m.store.ListServers()
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].ID < servers[j].ID })
	return servers, nil
}

// UpdateServer saves a server and refreshes every bot targeting it
func (m *Manager) UpdateServer(server *types.Server) error {
	if _, err := m.GetServer(server.ID); err != nil {
		return err
	}

	server.LastUpdated = time.Now()
	if err := m.store.SaveServer(server); err != nil {
		return fmt.Errorf("failed to save server: %w", err)
	}

	for _, c := range m.botsOnServer(server.ID) {
		m.pool.Submit("update_session", c.UpdateSessionInfo)
	}

	m.PublishEvent(events.NewServerEvent(events.EventServerUpdated, server.ID))
	return nil
}

// DeleteServer removes a server no bot targets
func (m *Manager) DeleteServer(id string) error {
	if _, err := m.GetServer(id); err != nil {
		return err
	}
	if n := len(m.botsOnServer(id)); n > 0 {
		return fmt.Errorf("%w: %d bots target %s", ErrServerInUse, n, id)
	}

	if err := m.store.DeleteServer(id); err != nil {
		return fmt.Errorf("failed to delete server: %w", err)
	}

	m.PublishEvent(events.NewServerEvent(events.EventServerDeleted, id))
	return nil
}

func (m *Manager) botsOnServer(serverID string) []*bot.Container {
	var out []*bot.Container
	for _, c := range m.containers() {
		if c.Bot().ServerID == serverID {
			out = append(out, c)
		}
	}
	return out
}

// Ping checks that storage is reachable
func (m *Manager) Ping() error {
	return m.store.Ping()
}

// GetEventBroker returns the event broker
func (m *Manager) GetEventBroker() *events.Broker {
	return m.eventBroker
}

// PublishEvent publishes an event to all subscribers
func (m *Manager) PublishEvent(event *events.Event) {
	if m.eventBroker != nil {
		m.eventBroker.Publish(event)
	}
}

// Shutdown stops every bot, drains the pool and stops the broker. The
// store is owned by the caller.
func (m *Manager) Shutdown() {
	var wg sync.WaitGroup
	for _, c := range m.containers() {
		wg.Add(1)
		go func(c *bot.Container) {
			defer wg.Done()
			c.Stop()
		}(c)
	}
	wg.Wait()

	m.pool.Close()

	// Bots started by tasks still queued at shutdown
	for _, c := range m.containers() {
		c.Stop()
	}

	if m.eventBroker != nil {
		m.eventBroker.Stop()
	}
	m.logger.Info().Msg("Manager stopped")
}
