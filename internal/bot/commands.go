package bot

import (
	"github.com/bwmarrin/discordgo"
)

func option(kind discordgo.ApplicationCommandOptionType, name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: kind, Name: name, Description: description, Required: required}
}

func subcommand(name, description string, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionSubCommand, Name: name, Description: description, Options: options}
}

const (
	optString  = discordgo.ApplicationCommandOptionString
	optInt     = discordgo.ApplicationCommandOptionInteger
	optNumber  = discordgo.ApplicationCommandOptionNumber
	optChannel = discordgo.ApplicationCommandOptionChannel
	optRole    = discordgo.ApplicationCommandOptionRole
)

var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "apikey",
		Description: "Manage your Torn API keys",
		Options: []*discordgo.ApplicationCommandOption{
			subcommand("set", "Store your Torn API key", option(optString, "key", "Torn API key", true)),
			subcommand("tornstats", "Store your TornStats API key", option(optString, "key", "TornStats API key", true)),
			subcommand("remove", "Delete every key stored for you"),
		},
	},
	{
		Name:        "stats",
		Description: "Show your battle stats and progress",
	},
	{
		Name:        "spy",
		Description: "Save or view spy reports",
		Options: []*discordgo.ApplicationCommandOption{
			subcommand("add", "Save a spy report",
				option(optString, "player", "Player id or profile link", true),
				option(optString, "strength", "Strength", true),
				option(optString, "speed", "Speed", true),
				option(optString, "dexterity", "Dexterity", true),
				option(optString, "defense", "Defense", true),
			),
			subcommand("view", "Show the latest spy on a player", option(optString, "player", "Player id or profile link", true)),
		},
	},
	{
		Name:        "enemy",
		Description: "Estimate an enemy's stats, fair fight and respect",
		Options: []*discordgo.ApplicationCommandOption{
			option(optString, "player", "Player id or profile link", true),
			option(optNumber, "damage", "Damage you dealt in a fight", false),
			option(optInt, "turns", "Turns that fight took", false),
			option(optString, "primary", "Your stat used in that fight", false),
		},
	},
	{
		Name:        "fairfight",
		Description: "Fair fight multiplier between two stat totals",
		Options: []*discordgo.ApplicationCommandOption{
			option(optString, "your", "Your total stats", true),
			option(optString, "enemy", "Enemy total stats", true),
			option(optInt, "level", "Enemy level", false),
		},
	},
	{
		Name:        "faction",
		Description: "Faction information",
		Options: []*discordgo.ApplicationCommandOption{
			subcommand("info", "Show a faction", option(optInt, "faction", "Faction id, defaults to this server's", false)),
			subcommand("compare", "Compare faction stats over a period",
				&discordgo.ApplicationCommandOption{
					Type: optString, Name: "period", Description: "Period", Required: true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "day", Value: "day"}, {Name: "week", Value: "week"}, {Name: "month", Value: "month"},
					},
				},
				option(optInt, "faction", "Faction id, defaults to this server's", false),
			),
		},
	},
	{
		Name:        "chainwatch",
		Description: "Alerts when the faction chain is about to break",
		Options: []*discordgo.ApplicationCommandOption{
			subcommand("config", "Configure chain alerts",
				option(optInt, "faction", "Faction id", true),
				option(optChannel, "channel", "Channel for alerts", true),
				option(optInt, "min_chain", "Only alert from this chain length", false),
				option(optInt, "warning_minutes", "Alert when this many minutes remain", false),
			),
			subcommand("enable", "Enable chain alerts"),
			subcommand("disable", "Disable chain alerts"),
		},
	},
	{
		Name:        "attackwatch",
		Description: "Report attacks against faction members",
		Options: []*discordgo.ApplicationCommandOption{
			subcommand("enable", "Enable attack reports",
				option(optChannel, "channel", "Channel for reports", true),
				option(optInt, "faction", "Faction id, defaults to this server's", false),
			),
			subcommand("disable", "Disable attack reports"),
		},
	},
	{
		Name:        "factionwatch",
		Description: "Notify significant faction stat changes",
		Options: []*discordgo.ApplicationCommandOption{
			subcommand("enable", "Enable notifications",
				option(optChannel, "channel", "Channel for notifications", true),
				option(optInt, "faction", "Faction id, defaults to this server's", false),
			),
			subcommand("disable", "Disable notifications"),
			subcommand("threshold", "Raise the threshold of a metric",
				option(optString, "metric", "Metric, for instance respect", true),
				option(optNumber, "percent", "Minimum change in percent", true),
			),
		},
	},
	{
		Name:        "giveaway",
		Description: "Start a giveaway in this channel",
		Options: []*discordgo.ApplicationCommandOption{
			option(optString, "prize", "What is given away", true),
			option(optInt, "minutes", "Duration in minutes", true),
			option(optString, "emoji", "Emoji to react with", false),
			option(optString, "host", "Who hosts it", false),
		},
	},
	{
		Name:        "bank",
		Description: "Faction bank requests",
		Options: []*discordgo.ApplicationCommandOption{
			subcommand("request", "Ask the bankers for money", option(optString, "amount", "Amount, for instance 5m", true)),
			subcommand("fulfil", "Mark a request as paid", option(optString, "id", "Request id", true)),
			subcommand("cancel", "Cancel a request", option(optString, "id", "Request id", true)),
			subcommand("pending", "List pending requests"),
			subcommand("setup", "Configure the bank",
				option(optChannel, "channel", "Channel where requests are posted", true),
				option(optRole, "role", "Banker role", true),
			),
		},
	},
	{
		Name:        "welcome",
		Description: "Welcome new members",
		Options: []*discordgo.ApplicationCommandOption{
			subcommand("set", "Configure the welcome message",
				option(optChannel, "channel", "Channel for welcome messages", true),
				option(optString, "message", "Message, {user} and {server} are replaced", false),
				option(optRole, "role", "Role given to new members", false),
			),
			subcommand("disable", "Stop welcoming new members"),
			subcommand("test", "Send the welcome message for yourself"),
		},
	},
	{
		Name:        "permissions",
		Description: "Role based permissions",
		Options: []*discordgo.ApplicationCommandOption{
			subcommand("enable", "Enforce role permissions"),
			subcommand("disable", "Allow every command to everyone"),
			subcommand("set", "Give a role a level in a category",
				option(optRole, "role", "Role", true),
				option(optString, "category", "Category, for instance bank", true),
				option(optString, "level", "none, use, contribute, manage or admin", true),
			),
		},
	},
	{
		Name:        "help",
		Description: "Print the usage of the different commands",
	},
}
