package types

import (
	"time"
)

// Bot is the stored record of one presence-broadcasting bot
type Bot struct {
	ID        string    `json:"id"`
	ServerID  string    `json:"serverId"`
	Gamertag  string    `json:"gamertag"`
	XUID      string    `json:"xid"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BotStatus represents the lifecycle state of a bot
type BotStatus string

const (
	BotStatusOffline  BotStatus = "offline"
	BotStatusStarting BotStatus = "starting"
	BotStatusOnline   BotStatus = "online"
)

// BotInfo is the read-only status view of a bot
type BotInfo struct {
	ID          string    `json:"id"`
	Gamertag    string    `json:"gamertag"`
	XUID        string    `json:"xid"`
	ServerID    string    `json:"serverId"`
	Status      BotStatus `json:"status"`
	FriendCount int       `json:"friendCount"`
}

// ToInfo builds the status view for this record
func (b *Bot) ToInfo(status BotStatus, friendCount int) BotInfo {
	return BotInfo{
		ID:          b.ID,
		Gamertag:    b.Gamertag,
		XUID:        b.XUID,
		ServerID:    b.ServerID,
		Status:      status,
		FriendCount: friendCount,
	}
}

// Server is a game server that bots broadcast on behalf of
type Server struct {
	ID          string      `json:"id"`
	Hostname    string      `json:"hostname"`
	Port        int         `json:"port"`
	SessionInfo SessionInfo `json:"sessionInfo"`
	LastUpdated time.Time   `json:"lastUpdated"`
}

// SessionInfo describes what a bot advertises for its server
type SessionInfo struct {
	HostName   string `json:"host-name"`
	WorldName  string `json:"world-name"`
	Version    string `json:"version"`
	Protocol   int    `json:"protocol"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"max-players"`
	IP         string `json:"ip"`
	Port       int    `json:"port"`
}

// Friend is one entry of a bot's friend list
type Friend struct {
	XUID      string `json:"xuid"`
	Gamertag  string `json:"gamertag"`
	Following bool   `json:"following"`
	Follower  bool   `json:"follower"`
	Presence  string `json:"presence,omitempty"`
}
