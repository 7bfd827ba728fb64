package types

import "time"

// ServerStatus is the summary record returned by an info query against a
// game server.
type ServerStatus struct {
	Name       string `json:"name"`
	Map        string `json:"map"`
	Game       string `json:"game"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"max_players"`
	VAC        bool   `json:"vac"`
	Version    string `json:"version"`
}

// Player is a single entry from a player-list query. Some games report a
// progression value (gear level, score) in the Score field.
type Player struct {
	Name     string        `json:"name"`
	Score    int           `json:"score"`
	Duration time.Duration `json:"duration"`
}

// Rules is the rule set advertised by the server, as opaque key/value pairs.
type Rules map[string]string
