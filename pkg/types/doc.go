/*
Package types defines the core data structures used throughout herald.

These types are shared by storage, the bot lifecycle controller, the
registry, and the HTTP API. They carry JSON tags because they are both the
stored representation (bbolt values) and the API wire representation.

# Core Types

Bots:
  - Bot: stored record (id, target server, last-known identity)
  - BotStatus: offline, starting, online
  - BotInfo: status view returned by the API

Servers:
  - Server: a game server with hostname, port and advertised session info
  - SessionInfo: host name, world name, version, protocol, player counts

Social:
  - Friend: one friend-list entry of an online bot

# Usage

	bot := &types.Bot{ID: uuid.New().String(), ServerID: server.ID}
	info := bot.ToInfo(types.BotStatusOffline, 0)
*/
package types
