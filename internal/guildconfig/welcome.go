package guildconfig

import (
	"errors"
	"strings"
	"sync"

	"brotherowl/internal/storage"
)

const DefaultWelcome = "Welcome to {server}, {user}!"

type WelcomeConfig struct {
	ChannelID string `json:"channel_id"`
	Message   string `json:"message"`
	AutoRole  string `json:"auto_role"`
	Enabled   bool   `json:"enabled"`
}

// Render fills in the {user} and {server} placeholders
func (w WelcomeConfig) Render(userMention string, serverName string) string {
	message := w.Message
	if message == "" {
		message = DefaultWelcome
	}
	return strings.NewReplacer("{user}", userMention, "{server}", serverName).Replace(message)
}

type Welcomes struct {
	mu   sync.Mutex
	repo storage.Repository[WelcomeConfig]
}

func NewWelcomes(repo storage.Repository[WelcomeConfig]) *Welcomes {
	return &Welcomes{repo: repo}
}

func (w *Welcomes) Get(guildID string) (WelcomeConfig, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	config, err := w.repo.Get(guildID)
	return config, err == nil
}

func (w *Welcomes) Update(guildID string, change func(*WelcomeConfig)) (WelcomeConfig, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	config, err := w.repo.Get(guildID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return WelcomeConfig{}, err
	}
	change(&config)
	return config, w.repo.Set(guildID, config)
}
