// Package giveaway runs reaction based giveaways with a countdown per giveaway.
package giveaway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"brotherowl/internal/common"
	"brotherowl/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultEmoji = "🎉"
	// Custom id of the force end button, followed by the giveaway id
	ButtonPrefix = "giveaway_end:"
	tickInterval = time.Second
	color        = 0xF1C40F
)

var (
	ErrNotFound     = errors.New("giveaway not found")
	ErrNotCreator   = errors.New("only the creator can end this giveaway")
	ErrAlreadyEnded = errors.New("giveaway already ended")
)

type Discord interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactionRemove(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error
}

type CreateRequest struct {
	GuildID   string
	ChannelID string
	CreatorID string
	Prize     string
	Host      string
	Emoji     string
	Duration  time.Duration
}

type Engine struct {
	discord Discord
	repo    storage.Repository[State]
	clock   common.Clock
	pick    func(n int) int
	every   time.Duration

	mu        sync.Mutex
	base      context.Context
	giveaways map[string]*State
	stops     map[string]context.CancelFunc
}

func NewEngine(discord Discord, repo storage.Repository[State], clock common.Clock) *Engine {
	if clock == nil {
		clock = common.SystemClock{}
	}
	return &Engine{
		discord:   discord,
		repo:      repo,
		clock:     clock,
		pick:      rand.Intn,
		every:     tickInterval,
		base:      context.Background(),
		giveaways: map[string]*State{},
		stops:     map[string]context.CancelFunc{},
	}
}

// Restore loads the persisted giveaways and resumes the countdown of those still running.
// Countdowns stop when ctx is cancelled
func (e *Engine) Restore(ctx context.Context) error {
	all, err := e.repo.List()
	if err != nil {
		return fmt.Errorf("failed to load giveaways: %w", err)
	}
	e.mu.Lock()
	e.base = ctx
	restored := 0
	for id, state := range all {
		s := state
		e.giveaways[id] = &s
		if !s.Ended {
			e.startCountdown(id)
			restored++
		}
	}
	e.mu.Unlock()
	log.Info().Int("giveaways", len(all)).Int("active", restored).Msg("Giveaways restored")
	return nil
}

func (e *Engine) Create(req CreateRequest) (State, error) {
	if req.Emoji == "" {
		req.Emoji = DefaultEmoji
	}
	if req.Host == "" {
		req.Host = fmt.Sprintf("<@%s>", req.CreatorID)
	}
	state := State{
		ID:        uuid.NewString(),
		GuildID:   req.GuildID,
		ChannelID: req.ChannelID,
		Prize:     req.Prize,
		Host:      req.Host,
		Emoji:     req.Emoji,
		CreatorID: req.CreatorID,
		EndsAt:    e.clock.Now().Add(req.Duration),
		Entrants:  []string{},
	}

	message, err := e.discord.ChannelMessageSendComplex(req.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{activeEmbed(state)},
		Components: []discordgo.MessageComponent{endButton(state.ID)},
	})
	if err != nil {
		return State{}, fmt.Errorf("could not post giveaway: %w", err)
	}
	state.MessageID = message.ID
	if err := e.discord.MessageReactionAdd(req.ChannelID, message.ID, apiEmoji(state.Emoji)); err != nil {
		log.Warn().Err(err).Str("giveaway", state.ID).Msg("Could not add giveaway reaction")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.giveaways[state.ID] = &state
	if err := e.repo.Set(state.ID, state); err != nil {
		return State{}, fmt.Errorf("could not save giveaway: %w", err)
	}
	e.startCountdown(state.ID)
	log.Info().Str("giveaway", state.ID).Str("guild", state.GuildID).Str("prize", state.Prize).Msg("Giveaway created")
	return state, nil
}

// Enter registers a reaction. Reactions on an ended giveaway are removed again
func (e *Engine) Enter(channelID, messageID, userID, emoji string) bool {
	e.mu.Lock()
	state := e.byMessage(messageID)
	if state == nil || !sameEmoji(state.Emoji, emoji) {
		e.mu.Unlock()
		return false
	}
	if state.Ended {
		e.mu.Unlock()
		if err := e.discord.MessageReactionRemove(channelID, messageID, emoji, userID); err != nil {
			log.Warn().Err(err).Str("giveaway", state.ID).Msg("Could not remove late reaction")
		}
		return false
	}
	added := state.addEntrant(userID)
	if added {
		e.save(state)
	}
	e.mu.Unlock()
	return added
}

func (e *Engine) Leave(messageID, userID, emoji string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	state := e.byMessage(messageID)
	if state == nil || state.Ended || !sameEmoji(state.Emoji, emoji) {
		return false
	}
	removed := state.removeEntrant(userID)
	if removed {
		e.save(state)
	}
	return removed
}

func (e *Engine) ForceEnd(id string, userID string) (State, error) {
	e.mu.Lock()
	state, ok := e.giveaways[id]
	if !ok {
		e.mu.Unlock()
		return State{}, ErrNotFound
	}
	if state.CreatorID != userID {
		e.mu.Unlock()
		return State{}, ErrNotCreator
	}
	e.mu.Unlock()

	final, ok := e.finish(id, true)
	if !ok {
		return State{}, ErrAlreadyEnded
	}
	return final, nil
}

func (e *Engine) Get(id string) (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.giveaways[id]
	if !ok {
		return State{}, false
	}
	return *state, true
}

func (e *Engine) Active(guildID string) []State {
	e.mu.Lock()
	defer e.mu.Unlock()
	active := []State{}
	for _, state := range e.giveaways {
		if !state.Ended && state.GuildID == guildID {
			active = append(active, *state)
		}
	}
	return active
}

// Must be called with the lock held
func (e *Engine) startCountdown(id string) {
	ctx, cancel := context.WithCancel(e.base)
	e.stops[id] = cancel
	every := e.every
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !e.tick(id) {
					return
				}
			}
		}
	}()
}

// tick reports whether the countdown has to keep running
func (e *Engine) tick(id string) bool {
	e.mu.Lock()
	state, ok := e.giveaways[id]
	if !ok || state.Ended {
		e.mu.Unlock()
		return false
	}
	if e.clock.Now().Before(state.EndsAt) {
		e.mu.Unlock()
		return true
	}
	channelID, messageID := state.ChannelID, state.MessageID
	e.mu.Unlock()

	if _, err := e.discord.ChannelMessage(channelID, messageID); err != nil {
		log.Warn().Err(err).Str("giveaway", id).Msg("Giveaway message is gone, ending without a winner")
		e.abandon(id)
		return false
	}
	e.finish(id, false)
	return false
}

// finish draws the winner and announces it. Only the first call for a giveaway does anything
func (e *Engine) finish(id string, forced bool) (State, bool) {
	e.mu.Lock()
	state, ok := e.giveaways[id]
	if !ok || state.Ended {
		e.mu.Unlock()
		return State{}, false
	}
	state.Ended = true
	if winner, ok := PickWinner(state.Entrants, e.pick); ok {
		state.Winner = winner
	}
	e.save(state)
	e.stop(id)
	final := *state
	e.mu.Unlock()

	log.Info().Str("giveaway", id).Bool("forced", forced).Int("entrants", len(final.Entrants)).Str("winner", final.Winner).Msg("Giveaway ended")

	edit := discordgo.NewMessageEdit(final.ChannelID, final.MessageID).SetEmbed(endedEmbed(final))
	edit.Components = &[]discordgo.MessageComponent{}
	if _, err := e.discord.ChannelMessageEditComplex(edit); err != nil {
		log.Warn().Err(err).Str("giveaway", id).Msg("Could not update giveaway message")
	}
	if _, err := e.discord.ChannelMessageSend(final.ChannelID, announcement(final)); err != nil {
		log.Warn().Err(err).Str("giveaway", id).Msg("Could not announce giveaway result")
	}
	return final, true
}

func (e *Engine) abandon(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if state, ok := e.giveaways[id]; ok && !state.Ended {
		state.Ended = true
		e.save(state)
	}
	e.stop(id)
}

func (e *Engine) stop(id string) {
	if cancel, ok := e.stops[id]; ok {
		cancel()
		delete(e.stops, id)
	}
}

func (e *Engine) save(state *State) {
	if err := e.repo.Set(state.ID, *state); err != nil {
		log.Error().Err(err).Str("giveaway", state.ID).Msg("Could not save giveaway")
	}
}

func (e *Engine) byMessage(messageID string) *State {
	for _, state := range e.giveaways {
		if state.MessageID == messageID {
			return state
		}
	}
	return nil
}

// Custom emojis are written <:name:id> in messages but name:id in reactions
func apiEmoji(emoji string) string {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(emoji, "<"), ">")
	if trimmed == emoji {
		return emoji
	}
	trimmed = strings.TrimPrefix(trimmed, "a:")
	return strings.TrimPrefix(trimmed, ":")
}

func sameEmoji(configured string, received string) bool {
	return apiEmoji(configured) == received
}

func activeEmbed(state State) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🎉 Giveaway 🎉",
		Description: fmt.Sprintf("**%s**\n\nReact with %s to enter!", state.Prize, state.Emoji),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Hosted by", Value: state.Host, Inline: true},
			{Name: "Ends", Value: fmt.Sprintf("<t:%d:R>", state.EndsAt.Unix()), Inline: true},
		},
	}
}

func endedEmbed(state State) *discordgo.MessageEmbed {
	winner := "No winner"
	if state.Winner != "" {
		winner = fmt.Sprintf("<@%s>", state.Winner)
	}
	return &discordgo.MessageEmbed{
		Title:       "Giveaway ended",
		Description: fmt.Sprintf("**%s**", state.Prize),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Hosted by", Value: state.Host, Inline: true},
			{Name: "Winner", Value: winner, Inline: true},
			{Name: "Entrants", Value: fmt.Sprintf("%d", len(state.Entrants)), Inline: true},
		},
	}
}

func endButton(id string) discordgo.ActionsRow {
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{Label: "End giveaway", Style: discordgo.DangerButton, CustomID: ButtonPrefix + id},
	}}
}

func announcement(state State) string {
	if state.Winner == "" {
		return fmt.Sprintf("The giveaway for **%s** ended with no valid entrants. No winner this time.", state.Prize)
	}
	return fmt.Sprintf("Congratulations <@%s>! You won **%s**!", state.Winner, state.Prize)
}
