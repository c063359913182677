package giveaway

import (
	"slices"
	"time"
)

type State struct {
	ID        string    `json:"id"`
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id"`
	MessageID string    `json:"message_id"`
	Prize     string    `json:"prize"`
	Host      string    `json:"host"`
	Emoji     string    `json:"emoji"`
	CreatorID string    `json:"creator_id"`
	EndsAt    time.Time `json:"ends_at"`
	Entrants  []string  `json:"entrants"`
	Winner    string    `json:"winner,omitempty"`
	Ended     bool      `json:"ended"`
}

func (s *State) addEntrant(userID string) bool {
	if slices.Contains(s.Entrants, userID) {
		return false
	}
	s.Entrants = append(s.Entrants, userID)
	return true
}

func (s *State) removeEntrant(userID string) bool {
	i := slices.Index(s.Entrants, userID)
	if i == -1 {
		return false
	}
	s.Entrants = slices.Delete(s.Entrants, i, i+1)
	return true
}

// PickWinner draws an entrant with pick(n) in [0,n). No entrants, no winner
func PickWinner(entrants []string, pick func(n int) int) (string, bool) {
	if len(entrants) == 0 {
		return "", false
	}
	return entrants[pick(len(entrants))], true
}
