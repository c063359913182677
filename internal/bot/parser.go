package bot

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// A slash command with its subcommand resolved and its options by name
type Command struct {
	Name       string
	Subcommand string
	options    map[string]*discordgo.ApplicationCommandInteractionDataOption
}

func ParseCommand(data discordgo.ApplicationCommandInteractionData) Command {
	command := Command{Name: data.Name, options: map[string]*discordgo.ApplicationCommandInteractionDataOption{}}
	options := data.Options
	for len(options) == 1 && (options[0].Type == discordgo.ApplicationCommandOptionSubCommand ||
		options[0].Type == discordgo.ApplicationCommandOptionSubCommandGroup) {
		if command.Subcommand == "" {
			command.Subcommand = options[0].Name
		} else {
			command.Subcommand += " " + options[0].Name
		}
		options = options[0].Options
	}
	for _, option := range options {
		command.options[option.Name] = option
	}
	return command
}

// Full name, as in "apikey set"
func (c Command) String() string {
	if c.Subcommand == "" {
		return c.Name
	}
	return c.Name + " " + c.Subcommand
}

func (c Command) Has(name string) bool {
	_, ok := c.options[name]
	return ok
}

func (c Command) Text(name string) string {
	option, ok := c.options[name]
	if !ok {
		return ""
	}
	s, _ := option.Value.(string)
	return s
}

// Numbers arrive as float64 whatever the option type
func (c Command) Float(name string) (float64, bool) {
	option, ok := c.options[name]
	if !ok {
		return 0, false
	}
	switch v := option.Value.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func (c Command) Int(name string) (int, bool) {
	f, ok := c.Float(name)
	return int(f), ok
}

func (c Command) Bool(name string) (bool, bool) {
	option, ok := c.options[name]
	if !ok {
		return false, false
	}
	b, ok := option.Value.(bool)
	return b, ok
}

// ID of a channel, role or user option
func (c Command) ID(name string) string {
	return c.Text(name)
}

var (
	playerBrackets = regexp.MustCompile(`\[(\d+)\]`)
	digitsOnly     = regexp.MustCompile(`^\d+$`)
)

// ParsePlayerID accepts a bare id, "Name [id]" or a profile link
func ParsePlayerID(input string) (int, error) {
	input = strings.TrimSpace(input)
	if digitsOnly.MatchString(input) {
		return strconv.Atoi(input)
	}
	if match := playerBrackets.FindStringSubmatch(input); match != nil {
		return strconv.Atoi(match[1])
	}
	if u, err := url.Parse(input); err == nil && u.Host != "" {
		for _, key := range []string{"XID", "ID", "userID"} {
			if id := u.Query().Get(key); digitsOnly.MatchString(id) {
				return strconv.Atoi(id)
			}
		}
	}
	return 0, fmt.Errorf("`%s` is not a player id", input)
}

var suffixes = map[string]float64{"k": 1e3, "m": 1e6, "b": 1e9, "t": 1e12}

// ParseAmount reads amounts like 250,000 or 1.5m or $2b
func ParseAmount(input string) (float64, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	multiplier := 1.0
	if len(s) > 0 {
		if m, ok := suffixes[s[len(s)-1:]]; ok {
			multiplier = m
			s = s[:len(s)-1]
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("`%s` is not a valid amount", input)
	}
	return f * multiplier, nil
}
