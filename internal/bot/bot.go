package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"brotherowl/internal/bank"
	"brotherowl/internal/cache"
	"brotherowl/internal/common"
	"brotherowl/internal/config"
	"brotherowl/internal/estimate"
	"brotherowl/internal/factionstats"
	"brotherowl/internal/giveaway"
	"brotherowl/internal/guildconfig"
	"brotherowl/internal/mirrors"
	"brotherowl/internal/monitor"
	"brotherowl/internal/storage"
	"brotherowl/internal/tornapi"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const bankCleanupInterval = 24 * time.Hour

// Everything the bot needs from Discord. *discordgo.Session satisfies it
type Discord interface {
	giveaway.Discord
	monitor.Sender
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
}

type Torn interface {
	User(ctx context.Context, key string, id int) (tornapi.Profile, error)
	BattleStats(ctx context.Context, key string) (tornapi.BattleStats, error)
	PersonalStats(ctx context.Context, key string, id int) (tornapi.PersonalStats, error)
	Faction(ctx context.Context, key string, factionID int) (tornapi.Faction, error)
	Chain(ctx context.Context, key string, factionID int) (tornapi.Chain, error)
	Attacks(ctx context.Context, key string, factionID int) ([]tornapi.Attack, error)
}

type Bot struct {
	token   string
	guildID string
	session *discordgo.Session
	discord Discord
	clock   common.Clock

	torn        Torn
	db          *storage.DB
	aggregator  *estimate.Aggregator
	tracker     *factionstats.Tracker
	notify      *factionstats.NotifyConfigs
	servers     *guildconfig.Servers
	welcomes    *guildconfig.Welcomes
	permissions *guildconfig.Permissions
	giveaways   *giveaway.Engine
	bank        *bank.Service

	chainMonitor  *monitor.ChainMonitor
	attackMonitor *monitor.AttackMonitor
	statsMonitor  *monitor.StatsMonitor
	intervals     config.MonitorConfig

	loops sync.WaitGroup
}

func CreateBot(cfg *config.Config, stores *Stores, mirrorCache cache.Cache) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("could not create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessageReactions | discordgo.IntentsGuildMembers

	clock := common.SystemClock{}
	restrictions := []common.Restriction{{Requests: cfg.Torn.RequestsPerMinute, Duration: time.Minute}}
	torn := tornapi.NewTornApi(cfg.Torn.BaseURL, restrictions, clock)

	mirrorClient := mirrors.NewClient(mirrorCache, clock)
	for name, template := range cfg.Mirrors {
		if provider, ok := mirrors.ParseProvider(name); ok {
			mirrorClient.SetEndpoint(provider, template)
		}
	}

	bot := newBot(session, torn, stores, mirrorClient, cfg.Torn.APIKey, clock)
	bot.token = cfg.Discord.Token
	bot.guildID = cfg.Discord.GuildID
	bot.session = session
	bot.intervals = cfg.Monitor
	return bot, nil
}

// newBot wires the services around the given Discord and Torn clients
func newBot(discord Discord, torn Torn, stores *Stores, mirrorSource estimate.MirrorSource, monitorKey string, clock common.Clock) *Bot {
	bot := &Bot{
		discord:     discord,
		clock:       clock,
		torn:        torn,
		db:          stores.DB,
		aggregator:  estimate.NewAggregator(torn, stores.DB, mirrorSource, clock),
		tracker:     factionstats.NewTracker(stores.FactionStats),
		notify:      factionstats.NewNotifyConfigs(stores.Notifications),
		servers:     guildconfig.NewServers(stores.Servers),
		welcomes:    guildconfig.NewWelcomes(stores.Welcomes),
		permissions: guildconfig.NewPermissions(stores.Permissions),
		giveaways:   giveaway.NewEngine(discord, stores.Giveaways, clock),
		bank:        bank.NewService(stores.Bank, clock),
		intervals: config.MonitorConfig{
			ChainInterval:  time.Minute,
			AttackInterval: time.Minute,
			StatsInterval:  time.Hour,
		},
	}
	keys := monitor.StoredKeys{Store: stores.DB, Fallback: monitorKey}
	bot.chainMonitor = monitor.NewChainMonitor(bot.servers, torn, keys, discord, clock)
	bot.attackMonitor = monitor.NewAttackMonitor(bot.servers, torn, keys, discord, clock)
	bot.statsMonitor = monitor.NewStatsMonitor(bot.notify, bot.tracker, torn, keys, bot.servers, stores.DB, discord, clock)
	return bot
}

// Run connects to Discord and blocks until ctx is cancelled
func (bot *Bot) Run(ctx context.Context) error {
	bot.session.AddHandler(bot.ready)
	bot.session.AddHandler(bot.interaction)
	bot.session.AddHandler(bot.reactionAdd)
	bot.session.AddHandler(bot.reactionRemove)
	bot.session.AddHandler(bot.memberAdd)

	if err := bot.session.Open(); err != nil {
		return fmt.Errorf("could not open discord session: %w", err)
	}
	defer bot.session.Close()

	if _, err := bot.session.ApplicationCommandBulkOverwrite(bot.session.State.User.ID, bot.guildID, commands); err != nil {
		return fmt.Errorf("could not register commands: %w", err)
	}
	log.Info().Int("commands", len(commands)).Msg("Commands registered")

	if err := bot.giveaways.Restore(ctx); err != nil {
		log.Error().Err(err).Msg("Could not restore giveaways")
	}
	bot.startLoops(ctx)

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	bot.loops.Wait()
	return nil
}

func (bot *Bot) startLoops(ctx context.Context) {
	schedulers := []common.Scheduler{
		{Name: "chain", Interval: bot.intervals.ChainInterval, Task: bot.chainMonitor.Check},
		{Name: "attacks", Interval: bot.intervals.AttackInterval, Task: bot.attackMonitor.Check},
		{Name: "faction stats", Interval: bot.intervals.StatsInterval, Task: bot.statsMonitor.Check},
		{Name: "bank cleanup", Interval: bankCleanupInterval, Task: func(context.Context) {
			if _, err := bot.bank.CollectGarbage(); err != nil {
				log.Error().Err(err).Msg("Bank cleanup failed")
			}
		}},
	}
	for _, scheduler := range schedulers {
		bot.loops.Add(1)
		go func(s common.Scheduler) {
			defer bot.loops.Done()
			s.Run(ctx)
		}(scheduler)
	}
}

func (bot *Bot) ready(s *discordgo.Session, r *discordgo.Ready) {
	log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("Connected to discord")
}

type request struct {
	ctx         context.Context
	interaction *discordgo.Interaction
	guildID     string
	userID      string
	roles       []string
	command     Command
}

// Commands that call external APIs answer through a deferred response
var slowCommands = map[string]bool{"stats": true, "enemy": true, "faction": true, "apikey": true}

// Level needed per command; anything not listed needs LevelUse.
// Bank fulfil and cancel check the banker role in their handlers
var requiredLevels = map[string]guildconfig.Level{
	"chainwatch":   guildconfig.LevelManage,
	"attackwatch":  guildconfig.LevelManage,
	"factionwatch": guildconfig.LevelManage,
	"welcome":      guildconfig.LevelManage,
	"giveaway":     guildconfig.LevelContribute,
	"spy add":      guildconfig.LevelContribute,
	"bank setup":   guildconfig.LevelAdmin,
	"permissions":  guildconfig.LevelAdmin,
}

func requiredLevel(command Command) guildconfig.Level {
	if level, ok := requiredLevels[command.String()]; ok {
		return level
	}
	if level, ok := requiredLevels[command.Name]; ok {
		return level
	}
	return guildconfig.LevelUse
}

func (bot *Bot) interaction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	bot.handleInteraction(context.Background(), i.Interaction)
}

func (bot *Bot) handleInteraction(ctx context.Context, interaction *discordgo.Interaction) {
	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		bot.handleCommand(ctx, interaction)
	case discordgo.InteractionMessageComponent:
		bot.handleComponent(ctx, interaction)
	}
}

func newRequest(ctx context.Context, interaction *discordgo.Interaction) request {
	req := request{ctx: ctx, interaction: interaction, guildID: interaction.GuildID}
	if interaction.Member != nil {
		req.roles = interaction.Member.Roles
		if interaction.Member.User != nil {
			req.userID = interaction.Member.User.ID
		}
	} else if interaction.User != nil {
		req.userID = interaction.User.ID
	}
	return req
}

func (bot *Bot) handleCommand(ctx context.Context, interaction *discordgo.Interaction) {
	req := newRequest(ctx, interaction)
	req.command = ParseCommand(interaction.ApplicationCommandData())
	log.Info().Str("command", req.command.String()).Str("guild", req.guildID).Str("user", req.userID).Msg("Command received")

	if req.guildID == "" {
		bot.respond(interaction, private("For the time being, I only answer inside servers"), false)
		return
	}
	if !bot.allowed(req) {
		bot.respond(interaction, PermissionDenied(req.command.String()), false)
		return
	}

	deferred := slowCommands[req.command.Name]
	if deferred && !bot.deferResponse(interaction, req.command.Name == "apikey" || req.command.Name == "stats") {
		return
	}
	bot.respond(interaction, bot.dispatch(req), deferred)
}

// Server administrators may run everything. With role permissions enforced the
// roles decide; otherwise manage commands need Manage Server and admin
// commands need Administrator
func (bot *Bot) allowed(req request) bool {
	discordPermissions := memberPermissions(req)
	if discordPermissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	required := requiredLevel(req.command)
	if bot.permissions.Enabled(req.guildID) {
		return bot.permissions.HasPermission(req.guildID, req.roles, req.command.Name, required)
	}
	switch {
	case required >= guildconfig.LevelAdmin:
		return false
	case required >= guildconfig.LevelManage:
		return discordPermissions&discordgo.PermissionManageServer != 0
	}
	return true
}

func memberPermissions(req request) int64 {
	if req.interaction.Member == nil {
		return 0
	}
	return req.interaction.Member.Permissions
}

func (bot *Bot) dispatch(req request) Response {
	switch req.command.Name {
	case "apikey":
		return bot.apikey(req)
	case "stats":
		return bot.stats(req)
	case "spy":
		return bot.spy(req)
	case "enemy":
		return bot.enemy(req)
	case "fairfight":
		return bot.fairfight(req)
	case "faction":
		return bot.faction(req)
	case "chainwatch":
		return bot.chainwatch(req)
	case "attackwatch":
		return bot.attackwatch(req)
	case "factionwatch":
		return bot.factionwatch(req)
	case "giveaway":
		return bot.giveawayCommand(req)
	case "bank":
		return bot.bankCommand(req)
	case "welcome":
		return bot.welcome(req)
	case "permissions":
		return bot.permissionsCommand(req)
	case "help":
		return HelpMessage()
	default:
		return InputNotValid(fmt.Sprintf("Command `%s` not recognised", req.command.Name))
	}
}

func (bot *Bot) handleComponent(ctx context.Context, interaction *discordgo.Interaction) {
	req := newRequest(ctx, interaction)
	customID := interaction.MessageComponentData().CustomID

	var response Response
	switch {
	case strings.HasPrefix(customID, giveaway.ButtonPrefix):
		response = bot.forceEndGiveaway(req, strings.TrimPrefix(customID, giveaway.ButtonPrefix))
	case strings.HasPrefix(customID, bank.ButtonFulfil):
		response = bot.fulfilBankRequest(req, strings.TrimPrefix(customID, bank.ButtonFulfil))
	case strings.HasPrefix(customID, bank.ButtonCancel):
		response = bot.cancelBankRequest(req, strings.TrimPrefix(customID, bank.ButtonCancel))
	default:
		log.Warn().Str("custom_id", customID).Msg("Unknown component")
		return
	}
	bot.respond(interaction, response, false)
}

func (bot *Bot) reactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if s.State != nil && s.State.User != nil && r.UserID == s.State.User.ID {
		return
	}
	bot.giveaways.Enter(r.ChannelID, r.MessageID, r.UserID, r.Emoji.APIName())
}

func (bot *Bot) reactionRemove(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
	bot.giveaways.Leave(r.MessageID, r.UserID, r.Emoji.APIName())
}

func (bot *Bot) memberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.User == nil || m.User.Bot {
		return
	}
	bot.welcomeMember(m.GuildID, m.User.ID)
}

// Torn key of the caller, with the user facing answer when there is none
func (bot *Bot) userKeys(req request) (storage.APIKeys, Response) {
	keys, err := bot.db.GetAPIKeys(req.ctx, req.userID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && keys.Torn == "") {
		return storage.APIKeys{}, NoAPIKey()
	}
	if err != nil {
		log.Error().Err(err).Str("user", req.userID).Msg("Could not read api keys")
		return storage.APIKeys{}, StorageFailure()
	}
	return keys, nil
}
