package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"brotherowl/internal/bank"
	"brotherowl/internal/common"
	"brotherowl/internal/config"
	"brotherowl/internal/mirrors"
	"brotherowl/internal/tornapi"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDiscord struct {
	mu        sync.Mutex
	next      int
	answers   []*discordgo.InteractionResponseData
	sent      map[string][]string
	complex   map[string][]*discordgo.MessageSend
	edits     []*discordgo.MessageEdit
	roleAdds  []string
	guildName string
}

func newFakeDiscord() *fakeDiscord {
	return &fakeDiscord{sent: map[string][]string{}, complex: map[string][]*discordgo.MessageSend{}, guildName: "Owl Nest"}
}

func (f *fakeDiscord) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[channelID] = append(f.sent[channelID], content)
	return &discordgo.Message{ChannelID: channelID}, nil
}

func (f *fakeDiscord) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.complex[channelID] = append(f.complex[channelID], data)
	return &discordgo.Message{ID: fmt.Sprintf("m%d", f.next), ChannelID: channelID}, nil
}

func (f *fakeDiscord) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return f.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}})
}

func (f *fakeDiscord) ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, m)
	return &discordgo.Message{ID: m.ID}, nil
}

func (f *fakeDiscord) ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return &discordgo.Message{ID: messageID, ChannelID: channelID}, nil
}

func (f *fakeDiscord) MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error {
	return nil
}

func (f *fakeDiscord) MessageReactionRemove(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error {
	return nil
}

func (f *fakeDiscord) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if resp.Type == discordgo.InteractionResponseChannelMessageWithSource {
		f.answers = append(f.answers, resp.Data)
	}
	return nil
}

func (f *fakeDiscord) InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data := &discordgo.InteractionResponseData{}
	if newresp.Content != nil {
		data.Content = *newresp.Content
	}
	if newresp.Embeds != nil {
		data.Embeds = *newresp.Embeds
	}
	f.answers = append(f.answers, data)
	return &discordgo.Message{}, nil
}

func (f *fakeDiscord) GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roleAdds = append(f.roleAdds, userID+":"+roleID)
	return nil
}

func (f *fakeDiscord) Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error) {
	return &discordgo.Guild{ID: guildID, Name: f.guildName}, nil
}

func (f *fakeDiscord) lastAnswer(t *testing.T) *discordgo.InteractionResponseData {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.answers)
	return f.answers[len(f.answers)-1]
}

// Every key is valid except "bad"; key "k1" belongs to player 1
type fakeTorn struct {
	profiles    map[int]tornapi.Profile
	stats       tornapi.BattleStats
	faction     tornapi.Faction
	factionDown bool
}

func (f *fakeTorn) User(ctx context.Context, key string, id int) (tornapi.Profile, error) {
	if key == "bad" {
		return tornapi.Profile{}, &tornapi.APIError{Code: 2, Message: "Incorrect Key"}
	}
	if id == 0 {
		id = 1
	}
	profile, ok := f.profiles[id]
	if !ok {
		return tornapi.Profile{}, &tornapi.APIError{Code: 6, Message: "Incorrect ID"}
	}
	return profile, nil
}

func (f *fakeTorn) BattleStats(ctx context.Context, key string) (tornapi.BattleStats, error) {
	return f.stats, nil
}

func (f *fakeTorn) PersonalStats(ctx context.Context, key string, id int) (tornapi.PersonalStats, error) {
	return tornapi.PersonalStats{XanaxTaken: 10}, nil
}

func (f *fakeTorn) Faction(ctx context.Context, key string, factionID int) (tornapi.Faction, error) {
	if f.factionDown {
		return tornapi.Faction{}, errors.New("api down")
	}
	return f.faction, nil
}

func (f *fakeTorn) Chain(ctx context.Context, key string, factionID int) (tornapi.Chain, error) {
	return tornapi.Chain{}, nil
}

func (f *fakeTorn) Attacks(ctx context.Context, key string, factionID int) ([]tornapi.Attack, error) {
	return nil, nil
}

type noMirrors struct{}

func (noMirrors) Lookup(ctx context.Context, provider mirrors.Provider, playerID int, key string) (mirrors.Spy, bool) {
	return mirrors.Spy{}, false
}

type testBot struct {
	*Bot
	discord *fakeDiscord
	torn    *fakeTorn
	clock   *common.ManualClock
	perms   map[string]int64 // discord permissions per user
}

func newTestBot(t *testing.T) testBot {
	t.Helper()
	dir := t.TempDir()
	stores, err := OpenStores(config.StorageConfig{DataDir: dir, DatabasePath: filepath.Join(dir, "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	discord := newFakeDiscord()
	torn := &fakeTorn{
		profiles: map[int]tornapi.Profile{
			1:   {PlayerID: 1, Name: "Owl", Level: 50},
			200: {PlayerID: 200, Name: "Target", Level: 40, Awards: 100},
		},
		stats: tornapi.BattleStats{Strength: 1000, Speed: 1000, Dexterity: 1000, Defense: 1000, Total: 4000},
	}
	clock := common.NewManualClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return testBot{
		Bot:     newBot(discord, torn, stores, noMirrors{}, "", clock),
		discord: discord,
		torn:    torn,
		clock:   clock,
		perms:   map[string]int64{"admin": discordgo.PermissionAdministrator},
	}
}

func opt(name string, value any) *discordgo.ApplicationCommandInteractionDataOption {
	kind := discordgo.ApplicationCommandOptionString
	if _, ok := value.(float64); ok {
		kind = discordgo.ApplicationCommandOptionNumber
	}
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: kind, Value: value}
}

func sub(name string, options ...*discordgo.ApplicationCommandInteractionDataOption) []*discordgo.ApplicationCommandInteractionDataOption {
	return []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: name, Type: discordgo.ApplicationCommandOptionSubCommand, Options: options},
	}
}

func (b testBot) interaction(userID string, roles []string) *discordgo.Interaction {
	return &discordgo.Interaction{
		GuildID:   "g1",
		ChannelID: "c1",
		Member:    &discordgo.Member{User: &discordgo.User{ID: userID}, Roles: roles, Permissions: b.perms[userID]},
	}
}

func (b testBot) command(t *testing.T, userID string, roles []string, name string, options []*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionResponseData {
	t.Helper()
	i := b.interaction(userID, roles)
	i.Type = discordgo.InteractionApplicationCommand
	i.Data = discordgo.ApplicationCommandInteractionData{Name: name, Options: options}
	b.handleInteraction(context.Background(), i)
	return b.discord.lastAnswer(t)
}

func (b testBot) click(t *testing.T, userID string, roles []string, customID string) *discordgo.InteractionResponseData {
	t.Helper()
	i := b.interaction(userID, roles)
	i.Type = discordgo.InteractionMessageComponent
	i.Data = discordgo.MessageComponentInteractionData{CustomID: customID}
	b.handleInteraction(context.Background(), i)
	return b.discord.lastAnswer(t)
}

func fieldValue(data *discordgo.InteractionResponseData, name string) string {
	for _, embed := range data.Embeds {
		for _, field := range embed.Fields {
			if field.Name == name {
				return field.Value
			}
		}
	}
	return ""
}

func TestDirectMessagesAreRejected(t *testing.T) {
	b := newTestBot(t)
	i := &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		User: &discordgo.User{ID: "u1"},
		Data: discordgo.ApplicationCommandInteractionData{Name: "help"},
	}
	b.handleInteraction(context.Background(), i)
	assert.Contains(t, b.discord.lastAnswer(t).Content, "only answer inside servers")
}

func TestApiKeyLifecycle(t *testing.T) {
	b := newTestBot(t)

	answer := b.command(t, "u1", nil, "stats", nil)
	assert.Contains(t, answer.Content, "/apikey set")

	answer = b.command(t, "u1", nil, "apikey", sub("set", opt("key", "bad")))
	assert.Contains(t, answer.Content, "not accepted")

	answer = b.command(t, "u1", nil, "apikey", sub("set", opt("key", "k1")))
	assert.Contains(t, answer.Content, "Owl")
	keys, err := b.db.GetAPIKeys(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "k1", keys.Torn)

	answer = b.command(t, "u1", nil, "apikey", sub("remove"))
	assert.Contains(t, answer.Content, "removed")
	answer = b.command(t, "u1", nil, "stats", nil)
	assert.Contains(t, answer.Content, "/apikey set")
}

func TestStatsShowsProgressSinceLastCall(t *testing.T) {
	b := newTestBot(t)
	b.command(t, "u1", nil, "apikey", sub("set", opt("key", "k1")))

	answer := b.command(t, "u1", nil, "stats", nil)
	assert.Equal(t, "", fieldValue(answer, "Progress"))
	assert.Equal(t, "10", fieldValue(answer, "Xanax taken"))

	b.clock.Advance(24 * time.Hour)
	b.torn.stats = tornapi.BattleStats{Strength: 1100, Speed: 1100, Dexterity: 1100, Defense: 1100, Total: 4400}
	answer = b.command(t, "u1", nil, "stats", nil)
	assert.Contains(t, fieldValue(answer, "Progress"), "+10.00%")
}

func TestSpyFeedsEnemyEstimate(t *testing.T) {
	b := newTestBot(t)
	b.command(t, "u1", nil, "apikey", sub("set", opt("key", "k1")))

	answer := b.command(t, "u1", nil, "spy", sub("view", opt("player", "200")))
	assert.Contains(t, answer.Content, "No spy")

	answer = b.command(t, "u1", nil, "spy", sub("add",
		opt("player", "Target [200]"),
		opt("strength", "1k"), opt("speed", "1,000"), opt("dexterity", "1000"), opt("defense", "1k")))
	assert.Contains(t, answer.Content, "4,000")

	answer = b.command(t, "u1", nil, "spy", sub("view", opt("player", "200")))
	assert.Equal(t, "4,000", fieldValue(answer, "Total"))

	answer = b.command(t, "u1", nil, "enemy", []*discordgo.ApplicationCommandInteractionDataOption{opt("player", "200")})
	require.Len(t, answer.Embeds, 1)
	assert.Contains(t, answer.Embeds[0].Title, "Target [200]")
	assert.Equal(t, "spy", fieldValue(answer, "Sources"))
	assert.Equal(t, "3.00", fieldValue(answer, "Fair fight"))
}

func TestFairFightRejectsBadTotals(t *testing.T) {
	b := newTestBot(t)
	answer := b.command(t, "u1", nil, "fairfight", []*discordgo.ApplicationCommandInteractionDataOption{
		opt("your", "lots"), opt("enemy", "1m"),
	})
	assert.Contains(t, answer.Content, "Input not valid")

	answer = b.command(t, "u1", nil, "fairfight", []*discordgo.ApplicationCommandInteractionDataOption{
		opt("your", "1m"), opt("enemy", "1m"),
	})
	assert.Equal(t, "3.00", fieldValue(answer, "Fair fight"))
}

func TestFactionInfoFallsBackToCache(t *testing.T) {
	b := newTestBot(t)
	b.command(t, "u1", nil, "apikey", sub("set", opt("key", "k1")))
	raw := json.RawMessage(`{"ID":9,"name":"Nest","respect":1000,"members":{"1":{"name":"Owl"}}}`)
	faction, err := tornapi.UnmarshalFaction(raw)
	require.NoError(t, err)
	b.torn.faction = faction

	answer := b.command(t, "u1", nil, "faction", sub("info", opt("faction", float64(9))))
	assert.Equal(t, "Nest [9]", answer.Embeds[0].Title)
	assert.Nil(t, answer.Embeds[0].Footer)

	b.torn.factionDown = true
	answer = b.command(t, "u1", nil, "faction", sub("info", opt("faction", float64(9))))
	assert.Equal(t, "Nest [9]", answer.Embeds[0].Title)
	require.NotNil(t, answer.Embeds[0].Footer)
	assert.Contains(t, answer.Embeds[0].Footer.Text, "cached")
}

func TestFactionCompareNeedsHistory(t *testing.T) {
	b := newTestBot(t)
	answer := b.command(t, "u1", nil, "faction", sub("compare", opt("period", "week"), opt("faction", float64(9))))
	assert.Contains(t, answer.Content, "Not enough history")
}

func TestChainwatchConfigAndPermissions(t *testing.T) {
	b := newTestBot(t)
	b.perms["u1"] = discordgo.PermissionManageServer

	answer := b.command(t, "u2", nil, "chainwatch", sub("config", opt("faction", float64(9)), opt("channel", "c9")))
	assert.Contains(t, answer.Content, "do not have permission")
	server, err := b.servers.Get("g1")
	require.NoError(t, err)
	assert.Equal(t, 0, server.FactionID)

	answer = b.command(t, "u1", nil, "chainwatch", sub("enable"))
	assert.Contains(t, answer.Content, "/chainwatch config")

	b.command(t, "u1", nil, "chainwatch", sub("config",
		opt("faction", float64(9)), opt("channel", "c9"), opt("min_chain", float64(25))))
	server, err = b.servers.Get("g1")
	require.NoError(t, err)
	assert.Equal(t, 9, server.FactionID)
	assert.Equal(t, "c9", server.ChainChannel)
	assert.Equal(t, 25, server.MinChain)
	assert.Equal(t, 2, server.WarningMinutes)
	assert.Equal(t, "u1", server.KeyOwner)
	assert.True(t, server.ChainEnabled)

	require.NoError(t, b.permissions.SetEnabled("g1", true))
	require.NoError(t, b.permissions.SetLevel("g1", "officer", "faction_info", 3))
	answer = b.command(t, "u2", []string{"member"}, "chainwatch", sub("disable"))
	assert.Contains(t, answer.Content, "do not have permission")

	b.command(t, "u2", []string{"officer"}, "chainwatch", sub("disable"))
	server, err = b.servers.Get("g1")
	require.NoError(t, err)
	assert.False(t, server.ChainEnabled)
}

func TestFactionwatchThreshold(t *testing.T) {
	b := newTestBot(t)
	b.perms["u1"] = discordgo.PermissionManageServer

	answer := b.command(t, "u1", nil, "factionwatch", sub("threshold", opt("metric", "respect"), opt("percent", 12.0)))
	assert.Contains(t, answer.Content, "/factionwatch enable")

	b.command(t, "u1", nil, "factionwatch", sub("enable", opt("channel", "c5"), opt("faction", float64(9))))
	config, ok := b.notify.Get("g1")
	require.True(t, ok)
	assert.Equal(t, 9, config.FactionID)
	server, err := b.servers.Get("g1")
	require.NoError(t, err)
	assert.Equal(t, "u1", server.KeyOwner)

	answer = b.command(t, "u1", nil, "factionwatch", sub("threshold", opt("metric", "nonsense"), opt("percent", 12.0)))
	assert.Contains(t, answer.Content, "not tracked")

	b.command(t, "u1", nil, "factionwatch", sub("threshold", opt("metric", "respect"), opt("percent", 12.0)))
	config, _ = b.notify.Get("g1")
	assert.Equal(t, 12.0, config.Thresholds["respect"])
}

func TestBankFlow(t *testing.T) {
	b := newTestBot(t)

	answer := b.command(t, "u1", nil, "bank", sub("request", opt("amount", "5m")))
	assert.Contains(t, answer.Content, "/bank setup")

	b.command(t, "admin", nil, "bank", sub("setup", opt("channel", "bank"), opt("role", "banker")))
	answer = b.command(t, "u1", nil, "bank", sub("request", opt("amount", "5m")))
	assert.Contains(t, answer.Content, "sent to the bankers")

	posted := b.discord.complex["bank"]
	require.Len(t, posted, 1)
	assert.Equal(t, "<@&banker>", posted[0].Content)
	pending, err := b.bank.Pending("g1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	request := pending[0]
	assert.Equal(t, int64(5_000_000), request.Amount)
	assert.True(t, request.Notified)

	answer = b.click(t, "u3", []string{"member"}, "bank_fulfil:"+request.ID)
	assert.Contains(t, answer.Content, "do not have permission")
	answer = b.command(t, "u3", []string{"member"}, "bank", sub("fulfil", opt("id", request.ID)))
	assert.Contains(t, answer.Content, "do not have permission")
	unchanged, err := b.bank.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, bank.Pending, unchanged.Status)

	answer = b.click(t, "u2", []string{"banker"}, "bank_fulfil:"+request.ID)
	assert.Contains(t, answer.Content, "fulfilled")
	require.Len(t, b.discord.edits, 1)
	assert.Empty(t, *b.discord.edits[0].Components)
	assert.Contains(t, strings.Join(b.discord.sent["c1"], "\n"), "<@u1>")

	answer = b.click(t, "u1", nil, "bank_cancel:"+request.ID)
	assert.Contains(t, answer.Content, "already resolved")
}

func TestServerAdminCountsAsBanker(t *testing.T) {
	b := newTestBot(t)
	b.command(t, "admin", nil, "bank", sub("setup", opt("channel", "bank"), opt("role", "banker")))
	b.command(t, "u1", nil, "bank", sub("request", opt("amount", "1m")))
	pending, err := b.bank.Pending("g1")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	answer := b.command(t, "admin", nil, "bank", sub("fulfil", opt("id", pending[0].ID)))
	assert.Contains(t, answer.Content, "fulfilled")
	done, err := b.bank.Get(pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, bank.Fulfilled, done.Status)
}

func TestAdminCommandsClosedByDefault(t *testing.T) {
	b := newTestBot(t)
	b.perms["manager"] = discordgo.PermissionManageServer

	for _, user := range []string{"u3", "manager"} {
		answer := b.command(t, user, []string{"member"}, "permissions",
			sub("set", opt("role", "member"), opt("category", "administration"), opt("level", "admin")))
		assert.Contains(t, answer.Content, "do not have permission", user)
		answer = b.command(t, user, []string{"member"}, "bank", sub("setup", opt("channel", "bank"), opt("role", "member")))
		assert.Contains(t, answer.Content, "do not have permission", user)
	}
	assert.False(t, b.permissions.Enabled("g1"))
	server, err := b.servers.Get("g1")
	require.NoError(t, err)
	assert.Empty(t, server.BankerRole)

	answer := b.command(t, "u3", []string{"member"}, "welcome", sub("disable"))
	assert.Contains(t, answer.Content, "do not have permission")
	answer = b.command(t, "manager", nil, "welcome", sub("disable"))
	assert.Contains(t, answer.Content, "disabled")

	// everyday commands stay open
	answer = b.command(t, "u3", []string{"member"}, "fairfight", []*discordgo.ApplicationCommandInteractionDataOption{
		opt("your", "1m"), opt("enemy", "1m"),
	})
	assert.Equal(t, "3.00", fieldValue(answer, "Fair fight"))
}

func TestWelcomeMember(t *testing.T) {
	b := newTestBot(t)
	assert.False(t, b.welcomeMember("g1", "u9"))

	b.command(t, "admin", nil, "welcome", sub("set",
		opt("channel", "hall"), opt("message", "Hello {user}, this is {server}"), opt("role", "newbie")))
	assert.True(t, b.welcomeMember("g1", "u9"))
	assert.Equal(t, []string{"Hello <@u9>, this is Owl Nest"}, b.discord.sent["hall"])
	assert.Equal(t, []string{"u9:newbie"}, b.discord.roleAdds)

	b.command(t, "admin", nil, "welcome", sub("disable"))
	assert.False(t, b.welcomeMember("g1", "u9"))
}

func TestGiveawayButtonOfUnknownGiveaway(t *testing.T) {
	b := newTestBot(t)
	answer := b.click(t, "u1", nil, "giveaway_end:nope")
	assert.Contains(t, answer.Content, "already ended")
}

func TestHelpListsEveryCommand(t *testing.T) {
	b := newTestBot(t)
	answer := b.command(t, "u1", nil, "help", nil)
	require.Len(t, answer.Embeds, 1)
	assert.Len(t, answer.Embeds[0].Fields, len(commands))
}
