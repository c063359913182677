package mirrors

import "fmt"

type Provider int

const (
	TornStats Provider = iota
	YATA
	TornTools
	TornPDA
	TornPlayground
)

// Order in which the mirrors are asked
var Priority = []Provider{TornStats, YATA, TornTools, TornPDA, TornPlayground}

var providerNames = map[Provider]string{
	TornStats:      "tornstats",
	YATA:           "yata",
	TornTools:      "torntools",
	TornPDA:        "tornpda",
	TornPlayground: "tornplayground",
}

func (p Provider) String() string {
	if name, ok := providerNames[p]; ok {
		return name
	}
	return fmt.Sprintf("provider(%d)", int(p))
}

// URL templates take the player id and the key, in that order
var defaultEndpoints = map[Provider]string{
	TornStats:      "https://www.tornstats.com/api/v2/%[2]s/spy/user/%[1]d",
	YATA:           "https://yata.yt/api/v1/spy/%[1]d/?key=%[2]s",
	TornTools:      "https://torntools.gg/api/v1/stats/%[1]d?key=%[2]s",
	TornPDA:        "https://tornpda.com/api/spy/%[1]d?key=%[2]s",
	TornPlayground: "https://tornplayground.eu/api/stats/%[1]d?key=%[2]s",
}

// TornStats is the only mirror keyed with its own key; the others take the Torn key
func (p Provider) UsesTornStatsKey() bool {
	return p == TornStats
}

func ParseProvider(name string) (Provider, bool) {
	for provider, n := range providerNames {
		if n == name {
			return provider, true
		}
	}
	return 0, false
}
