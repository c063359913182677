// Package guildconfig holds the per-guild settings: monitoring targets,
// welcome messages and role permissions.
package guildconfig

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"brotherowl/internal/storage"
)

const (
	DefaultMinChain       = 10
	DefaultWarningMinutes = 2
)

type ServerConfig struct {
	GuildID        string `json:"guild_id"`
	FactionID      int    `json:"faction_id"`
	KeyOwner       string `json:"key_owner"` // user whose Torn key the monitors use
	ChainChannel   string `json:"chain_channel"`
	MinChain       int    `json:"min_chain"`
	WarningMinutes int    `json:"warning_minutes"`
	ChainEnabled   bool   `json:"chain_enabled"`
	AttackChannel  string `json:"attack_channel"`
	AttacksEnabled bool   `json:"attacks_enabled"`
	BankerRole     string `json:"banker_role"`
	BankChannel    string `json:"bank_channel"`
}

type Servers struct {
	mu   sync.Mutex
	repo storage.Repository[ServerConfig]
}

func NewServers(repo storage.Repository[ServerConfig]) *Servers {
	return &Servers{repo: repo}
}

// Get returns the stored configuration, or the defaults for a guild never configured
func (s *Servers) Get(guildID string) (ServerConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(guildID)
}

// Update applies the change on top of the stored configuration and saves it
func (s *Servers) Update(guildID string, change func(*ServerConfig)) (ServerConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	config, err := s.get(guildID)
	if err != nil {
		return ServerConfig{}, err
	}
	change(&config)
	config.GuildID = guildID
	if err := s.repo.Set(guildID, config); err != nil {
		return ServerConfig{}, fmt.Errorf("failed to save config of guild %s: %w", guildID, err)
	}
	return config, nil
}

// All configured guilds ordered by id
func (s *Servers) List() ([]ServerConfig, error) {
	s.mu.Lock()
	all, err := s.repo.List()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	configs := make([]ServerConfig, 0, len(all))
	for _, config := range all {
		configs = append(configs, config)
	}
	slices.SortFunc(configs, func(a, b ServerConfig) int {
		return cmp.Compare(a.GuildID, b.GuildID)
	})
	return configs, nil
}

func (s *Servers) get(guildID string) (ServerConfig, error) {
	config, err := s.repo.Get(guildID)
	if errors.Is(err, storage.ErrNotFound) {
		return ServerConfig{GuildID: guildID, MinChain: DefaultMinChain, WarningMinutes: DefaultWarningMinutes}, nil
	}
	return config, err
}
