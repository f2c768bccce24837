/*
Package api implements the herald HTTP JSON API.

The api package is the interface for the CLI and the web dashboard. It maps
HTTP routes onto registry operations, serves health and readiness probes,
exposes Prometheus metrics and streams lifecycle events.

# Architecture

	┌──────────────── CLIENT (CLI / dashboard) ────────────────┐
	└─────────────────────────┬────────────────────────────────┘
	                          │ HTTP/JSON
	┌─────────────────────────▼────────────────────────────────┐
	│  instrument   request counter, duration histogram         │
	│  readOnly     403 for mutating requests when enabled      │
	│  ServeMux     method + path patterns                      │
	│       │                                                   │
	│  ┌────▼──────────────────────────────┐                    │
	│  │  manager.Manager                   │                    │
	│  │  bots, servers, pool, broker       │                    │
	│  └────────────────────────────────────┘                    │
	└───────────────────────────────────────────────────────────┘

# Routes

Bots:

	GET    /api/bots                          list status views
	POST   /api/bots/create                   create and start, returns {"id"}
	GET    /api/bots/{id}                     status view
	POST   /api/bots/{id}                     {"serverId"}: retarget
	DELETE /api/bots/{id}                     stop and delete
	POST   /api/bots/{id}/start|stop|restart  queued on the pool
	GET    /api/bots/{id}/logs                diagnostic log, text/plain
	GET    /api/bots/{id}/session             dump and return the session document
	GET    /api/bots/{id}/friends             cached friend list (online only)
	DELETE /api/bots/{id}/friends/{xuid}      unfollow (online only)

Servers:

	GET    /api/servers
	POST   /api/servers
	GET    /api/servers/{id}
	POST   /api/servers/{id}
	DELETE /api/servers/{id}                  409 while bots target it

Operations:

	GET /api/events   server-sent events, ?bot=<id> to filter
	GET /health       component health
	GET /ready        readiness of storage, registry and api
	GET /live         liveness
	GET /metrics      Prometheus

# Status Codes

Unknown bots and servers return 404. A retarget to an unknown server,
friend operations on an offline bot and requests failing validation return
400. Start, stop and restart always answer 200 once queued; their outcome
shows up in the bot's log and status.

Request bodies are validated with go-playground/validator; errors name the
JSON field that failed.
*/
package api
