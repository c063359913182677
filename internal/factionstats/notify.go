package factionstats

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"brotherowl/internal/storage"
)

// Where a guild wants faction change notifications
type NotifyConfig struct {
	GuildID    string             `json:"guild_id"`
	FactionID  int                `json:"faction_id"`
	ChannelID  string             `json:"channel_id"`
	Enabled    bool               `json:"enabled"`
	Thresholds map[string]float64 `json:"thresholds,omitempty"`
}

// Overrides can only make a guild quieter than the tracker defaults
func (c NotifyConfig) Filter(changes []Change) []Change {
	if len(c.Thresholds) == 0 {
		return changes
	}
	filtered := make([]Change, 0, len(changes))
	for _, change := range changes {
		if threshold, ok := c.Thresholds[change.Metric]; ok && abs(change.Percent) < threshold {
			continue
		}
		filtered = append(filtered, change)
	}
	return filtered
}

type NotifyConfigs struct {
	mu   sync.Mutex
	repo storage.Repository[NotifyConfig]
}

func NewNotifyConfigs(repo storage.Repository[NotifyConfig]) *NotifyConfigs {
	return &NotifyConfigs{repo: repo}
}

func (n *NotifyConfigs) Get(guildID string) (NotifyConfig, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	config, err := n.repo.Get(guildID)
	return config, err == nil
}

func (n *NotifyConfigs) Enable(guildID string, factionID int, channelID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	config, err := n.repo.Get(guildID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	config.GuildID = guildID
	config.FactionID = factionID
	config.ChannelID = channelID
	config.Enabled = true
	return n.repo.Set(guildID, config)
}

func (n *NotifyConfigs) Disable(guildID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	config, err := n.repo.Get(guildID)
	if err != nil {
		return err
	}
	config.Enabled = false
	return n.repo.Set(guildID, config)
}

func (n *NotifyConfigs) SetThreshold(guildID string, metric string, percent float64) error {
	if _, ok := DefaultThresholds[metric]; !ok {
		return fmt.Errorf("metric %q is not tracked", metric)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	config, err := n.repo.Get(guildID)
	if err != nil {
		return err
	}
	if config.Thresholds == nil {
		config.Thresholds = map[string]float64{}
	}
	config.Thresholds[metric] = percent
	return n.repo.Set(guildID, config)
}

// Enabled configs grouped by faction
func (n *NotifyConfigs) ByFaction() (map[int][]NotifyConfig, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	all, err := n.repo.List()
	if err != nil {
		return nil, err
	}
	grouped := make(map[int][]NotifyConfig)
	for _, config := range all {
		if config.Enabled && config.FactionID != 0 {
			grouped[config.FactionID] = append(grouped[config.FactionID], config)
		}
	}
	for _, configs := range grouped {
		slices.SortFunc(configs, func(a, b NotifyConfig) int {
			return cmp.Compare(a.GuildID, b.GuildID)
		})
	}
	return grouped, nil
}
