/*
Package storage provides BoltDB-backed persistence for herald's state.

The storage package implements the Store interface using bbolt, an embedded
transactional key/value store. Bot records and servers are serialized as
JSON into their own buckets; session engines get a private raw key/value
namespace per bot.

# Architecture

	┌──────────────────── BOLTDB STORAGE ─────────────────────┐
	│                                                           │
	│  BoltStore (<dataDir>/herald.db)                          │
	│    ├── bots       bot ID    → types.Bot JSON              │
	│    ├── servers    server ID → types.Server JSON           │
	│    └── sessions                                           │
	│          └── <bot ID>  key → raw bytes                    │
	│                ├── profile                                │
	│                ├── friends                                │
	│                └── current_session                        │
	│                                                           │
	│  Reads:  db.View()   concurrent                           │
	│  Writes: db.Update() serialized, fsync on commit          │
	└───────────────────────────────────────────────────────────┘

# Errors

Lookups of missing records return an error wrapping ErrNotFound:

	bot, err := store.GetBot(id)
	if errors.Is(err, storage.ErrNotFound) {
		// unknown bot
	}

Save operations are upserts. Deletes of missing keys succeed.

# Usage

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SaveBot(&types.Bot{ID: id, ServerID: serverID}); err != nil {
		return err
	}

	// Per-bot namespace handed to the session engine
	st := store.SessionStorage(id)
	_ = st.Put(session.CurrentSessionKey, doc)

	// Removing a bot removes its session data too
	_ = store.DeleteBot(id)
	_ = store.DeleteBotSessions(id)

bbolt holds an exclusive file lock, so only one herald process may open a
data directory at a time.
*/
package storage
