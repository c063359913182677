package bot

import (
	"fmt"
	"os"

	"brotherowl/internal/bank"
	"brotherowl/internal/config"
	"brotherowl/internal/factionstats"
	"brotherowl/internal/giveaway"
	"brotherowl/internal/guildconfig"
	"brotherowl/internal/storage"
)

// Every store the bot persists to. The SQLite database keeps keys, stats,
// spies and server configs; the rest are JSON files in the data directory
type Stores struct {
	DB            *storage.DB
	Servers       storage.Repository[guildconfig.ServerConfig]
	Welcomes      storage.Repository[guildconfig.WelcomeConfig]
	Permissions   storage.Repository[guildconfig.RolePermissions]
	Giveaways     storage.Repository[giveaway.State]
	Bank          storage.Repository[bank.Request]
	FactionStats  storage.Repository[factionstats.History]
	Notifications storage.Repository[factionstats.NotifyConfig]
}

func OpenStores(cfg config.StorageConfig) (*Stores, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := storage.NewDB(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	stores := &Stores{DB: db, Servers: storage.NewKVRepository[guildconfig.ServerConfig](db, "server_config")}

	if stores.Welcomes, err = storage.OpenJSONFile[guildconfig.WelcomeConfig](cfg.File("welcome_messages.json")); err != nil {
		return nil, stores.fail(err)
	}
	if stores.Permissions, err = storage.OpenJSONFile[guildconfig.RolePermissions](cfg.File("role_permissions.json")); err != nil {
		return nil, stores.fail(err)
	}
	if stores.Giveaways, err = storage.OpenJSONFile[giveaway.State](cfg.File("giveaways.json")); err != nil {
		return nil, stores.fail(err)
	}
	if stores.Bank, err = storage.OpenJSONFile[bank.Request](cfg.File("bank_requests.json")); err != nil {
		return nil, stores.fail(err)
	}
	if stores.FactionStats, err = storage.OpenJSONFile[factionstats.History](cfg.File("faction_stats.json")); err != nil {
		return nil, stores.fail(err)
	}
	if stores.Notifications, err = storage.OpenJSONFile[factionstats.NotifyConfig](cfg.File("stats_notifications.json")); err != nil {
		return nil, stores.fail(err)
	}
	return stores, nil
}

func (s *Stores) Close() error {
	return s.DB.Close()
}

func (s *Stores) fail(err error) error {
	s.DB.Close()
	return err
}
