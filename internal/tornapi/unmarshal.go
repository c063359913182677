package tornapi

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Every Torn payload may be an error envelope instead of the data asked for
func checkEnvelope(data []byte) error {
	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("response is not json: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	return nil
}

func UnmarshalProfile(data []byte) (Profile, error) {
	if err := checkEnvelope(data); err != nil {
		return Profile{}, err
	}
	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

func UnmarshalBattleStats(data []byte) (BattleStats, error) {
	if err := checkEnvelope(data); err != nil {
		return BattleStats{}, err
	}
	var stats BattleStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return BattleStats{}, err
	}
	if stats.Total == 0 {
		stats.Total = stats.Strength + stats.Speed + stats.Dexterity + stats.Defense
	}
	return stats, nil
}

func UnmarshalPersonalStats(data []byte) (PersonalStats, error) {
	if err := checkEnvelope(data); err != nil {
		return PersonalStats{}, err
	}
	var raw struct {
		PersonalStats PersonalStats `json:"personalstats"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return PersonalStats{}, err
	}
	return raw.PersonalStats, nil
}

func UnmarshalFaction(data []byte) (Faction, error) {
	if err := checkEnvelope(data); err != nil {
		return Faction{}, err
	}
	var faction Faction
	if err := json.Unmarshal(data, &faction); err != nil {
		return Faction{}, err
	}
	faction.Raw = append(json.RawMessage(nil), data...)
	return faction, nil
}

func UnmarshalChain(data []byte) (Chain, error) {
	if err := checkEnvelope(data); err != nil {
		return Chain{}, err
	}
	var raw struct {
		Chain Chain `json:"chain"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Chain{}, err
	}
	return raw.Chain, nil
}

// Attacks come keyed by attack id; they are returned oldest first
func UnmarshalAttacks(data []byte) ([]Attack, error) {
	if err := checkEnvelope(data); err != nil {
		return nil, err
	}
	var raw struct {
		Attacks map[string]Attack `json:"attacks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	attacks := make([]Attack, 0, len(raw.Attacks))
	for id, attack := range raw.Attacks {
		attack.ID = id
		attacks = append(attacks, attack)
	}
	sort.Slice(attacks, func(i, j int) bool {
		if attacks[i].TimestampEnded == attacks[j].TimestampEnded {
			return attacks[i].ID < attacks[j].ID
		}
		return attacks[i].TimestampEnded < attacks[j].TimestampEnded
	})
	return attacks, nil
}
