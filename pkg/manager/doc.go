/*
Package manager implements the herald bot registry.

The Manager owns every bot container, the servers bots broadcast for, and
the shared task pool that runs start requests and session refreshes off the
caller's goroutine. It persists bot records and servers in a storage.Store
and satisfies bot.Registry for the containers it creates.

# Architecture

	┌──────────────────────── MANAGER ─────────────────────────┐
	│                                                            │
	│  HTTP API / CLI                                            │
	│       │                                                    │
	│  ┌────▼──────────────────────────────────────┐            │
	│  │ Manager                                    │            │
	│  │  - bots: id → *bot.Container               │            │
	│  │  - servers (storage)                       │            │
	│  │  - SaveBot / ServerSessionInfo for bots    │            │
	│  └────┬───────────────┬───────────────┬──────┘            │
	│       │               │               │                    │
	│  ┌────▼─────┐   ┌─────▼──────┐  ┌─────▼──────┐            │
	│  │  Pool    │   │ Broker     │  │ BoltStore  │            │
	│  │ (sized   │   │ (events)   │  │ bots,      │            │
	│  │ waitgrp) │   │            │  │ servers,   │            │
	│  └──────────┘   └────────────┘  │ sessions   │            │
	│                                  └────────────┘            │
	└────────────────────────────────────────────────────────────┘

# Bots

AddBot stores a new offline bot targeting the first server (ordered by ID);
CreateBot additionally submits Start to the pool. Load creates containers
for stored bots at boot and StartAll starts them on the pool. DeleteBot
stops the bot before removing its record and session data.

UpdateBotServer saves the new target and submits one UpdateSessionInfo to
the pool, so a running bot switches servers without a restart.

# Servers

UpdateServer refreshes every bot targeting the server. DeleteServer is
rejected with ErrServerInUse while any bot targets it.

# Errors

	ErrBotNotFound     unknown bot ID
	ErrServerNotFound  unknown server ID
	ErrServerInUse     server still targeted by a bot

# Metrics

MetricsCollector samples bot counts by status and the server count every
15 seconds.
*/
package manager
