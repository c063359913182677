package guildconfig

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"brotherowl/internal/storage"
)

type Level int

const (
	LevelNone Level = iota
	LevelUse
	LevelContribute
	LevelManage
	LevelAdmin
)

var levelNames = []string{"none", "use", "contribute", "manage", "admin"}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return LevelNone, fmt.Errorf("unknown permission level %q", s)
}

// Commands grouped by the category a role gets access to
var Categories = map[string][]string{
	"administration": {"permissions"},
	"faction_info":   {"faction", "chainwatch", "attackwatch", "factionwatch"},
	"welcome":        {"welcome"},
	"stats":          {"stats", "fairfight"},
	"api_keys":       {"apikey"},
	"spy":            {"spy"},
	"war":            {"enemy"},
	"bank":           {"bank"},
	"giveaway":       {"giveaway"},
}

func CategoryOf(command string) (string, bool) {
	for category, commands := range Categories {
		for _, c := range commands {
			if c == command {
				return category, true
			}
		}
	}
	return "", false
}

type RolePermissions struct {
	Enabled bool                        `json:"enabled"`
	Roles   map[string]map[string]Level `json:"roles"` // role id -> category -> level
}

type Permissions struct {
	mu   sync.Mutex
	repo storage.Repository[RolePermissions]
}

func NewPermissions(repo storage.Repository[RolePermissions]) *Permissions {
	return &Permissions{repo: repo}
}

// Enabled reports whether the guild enforces role permissions
func (p *Permissions) Enabled(guildID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	config, err := p.repo.Get(guildID)
	return err == nil && config.Enabled
}

func (p *Permissions) SetEnabled(guildID string, enabled bool) error {
	return p.update(guildID, func(rp *RolePermissions) {
		rp.Enabled = enabled
	})
}

func (p *Permissions) SetLevel(guildID string, roleID string, category string, level Level) error {
	if _, ok := Categories[category]; !ok {
		return fmt.Errorf("unknown category %q", category)
	}
	return p.update(guildID, func(rp *RolePermissions) {
		if rp.Roles == nil {
			rp.Roles = map[string]map[string]Level{}
		}
		if rp.Roles[roleID] == nil {
			rp.Roles[roleID] = map[string]Level{}
		}
		rp.Roles[roleID][category] = level
	})
}

// HasPermission allows everything while the guild has not enabled role
// permissions, and every command outside the categories
func (p *Permissions) HasPermission(guildID string, roles []string, command string, required Level) bool {
	p.mu.Lock()
	config, err := p.repo.Get(guildID)
	p.mu.Unlock()
	if err != nil || !config.Enabled {
		return true
	}
	category, ok := CategoryOf(command)
	if !ok {
		return true
	}
	best := LevelNone
	for _, role := range roles {
		if level := config.Roles[role][category]; level > best {
			best = level
		}
	}
	return best >= required
}

func (p *Permissions) update(guildID string, change func(*RolePermissions)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	config, err := p.repo.Get(guildID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	change(&config)
	return p.repo.Set(guildID, config)
}
