package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/herald/pkg/session"
	"github.com/cuemby/herald/pkg/types"
)

var (
	// Bucket names
	bucketBots     = []byte("bots")
	bucketServers  = []byte("servers")
	bucketSessions = []byte("sessions") // nested bucket per bot ID
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "herald.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketBots, bucketServers, bucketSessions} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database can serve a read transaction
func (s *BoltStore) Ping() error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketBots) == nil {
			return fmt.Errorf("bucket %s missing", bucketBots)
		}
		return nil
	})
}

// Bot operations
func (s *BoltStore) SaveBot(bot *types.Bot) error {
	return s.put(bucketBots, bot.ID, bot)
}

func (s *BoltStore) GetBot(id string) (*types.Bot, error) {
	var bot types.Bot
	if err := s.get(bucketBots, id, &bot); err != nil {
		return nil, fmt.Errorf("bot %s: %w", id, err)
	}
	return &bot, nil
}

func (s *BoltStore) ListBots() ([]*types.Bot, error) {
	return list[types.Bot](s.db, bucketBots)
}

func (s *BoltStore) DeleteBot(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBots).Delete([]byte(id))
	})
}

// Server operations
func (s *BoltStore) SaveServer(server *types.Server) error {
	return s.put(bucketServers, server.ID, server)
}

func (s *BoltStore) GetServer(id string) (*types.Server, error) {
	var server types.Server
	if err := s.get(bucketServers, id, &server); err != nil {
		return nil, fmt.Errorf("server %s: %w", id, err)
	}
	return &server, nil
}

func (s *BoltStore) ListServers() ([]*types.Server, error) {
	return list[types.Server](s.db, bucketServers)
}

func (s *BoltStore) DeleteServer(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketServers).Delete([]byte(id))
	})
}

// Session operations

// SessionStorage returns the key/value namespace of one bot's session data
func (s *BoltStore) SessionStorage(botID string) session.Storage {
	return &sessionStorage{db: s.db, botID: []byte(botID)}
}

// DeleteBotSessions removes every session key stored for botID
func (s *BoltStore) DeleteBotSessions(botID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket(bucketSessions).DeleteBucket([]byte(botID))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

func (s *BoltStore) put(bucket []byte, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(id), data)
	})
}

func (s *BoltStore) get(bucket []byte, id string, v any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, v)
	})
}

// list decodes every value of bucket in key order
func list[T any](db *bolt.DB, bucket []byte) ([]*T, error) {
	var out []*T
	err := db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			item := new(T)
			if err := json.Unmarshal(v, item); err != nil {
				return fmt.Errorf("decode %s/%s: %w", bucket, k, err)
			}
			out = append(out, item)
			return nil
		})
	})
	return out, err
}

// sessionStorage stores raw values in sessions/<botID>
type sessionStorage struct {
	db    *bolt.DB
	botID []byte
}

func (s *sessionStorage) Get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions).Bucket(s.botID)
		if b == nil {
			return ErrNotFound
		}
		data := b.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		// Values are only valid for the life of the transaction
		out = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("session key %s: %w", key, err)
	}
	return out, nil
}

func (s *sessionStorage) Put(key string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(bucketSessions).CreateBucketIfNotExists(s.botID)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

func (s *sessionStorage) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions).Bucket(s.botID)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}
