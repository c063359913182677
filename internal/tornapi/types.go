package tornapi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Returned when the payload carries Torn's {"error": {...}} envelope
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("torn api error %d: %s", e.Code, e.Message)
}

// Torn sends ids either as numbers or, for stealthed attackers, as empty strings
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	if string(data) == "null" || string(data) == `""` {
		*f = 0
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		v, err := n.Float64()
		if err != nil {
			return err
		}
		*f = FlexInt(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("not an id: %q", s)
	}
	*f = FlexInt(v)
	return nil
}

type FactionMembership struct {
	FactionID   int    `json:"faction_id"`
	FactionName string `json:"faction_name"`
	Position    string `json:"position"`
}

type Status struct {
	Description string `json:"description"`
	State       string `json:"state"`
	Until       int64  `json:"until"`
}

type LastAction struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Relative  string `json:"relative"`
}

type Profile struct {
	PlayerID   int               `json:"player_id"`
	Name       string            `json:"name"`
	Level      int               `json:"level"`
	Awards     int               `json:"awards"`
	Age        int               `json:"age"`
	Faction    FactionMembership `json:"faction"`
	Status     Status            `json:"status"`
	LastAction LastAction        `json:"last_action"`
}

type BattleStats struct {
	Strength  float64 `json:"strength"`
	Speed     float64 `json:"speed"`
	Dexterity float64 `json:"dexterity"`
	Defense   float64 `json:"defense"`
	Total     float64 `json:"total"`
}

type PersonalStats struct {
	XanaxTaken      int64 `json:"xantaken"`
	EnergyDrinkUsed int64 `json:"energydrinkused"`
	Refills         int64 `json:"refills"`
	AttacksWon      int64 `json:"attackswon"`
}

type Member struct {
	Name          string     `json:"name"`
	Level         int        `json:"level"`
	DaysInFaction int        `json:"days_in_faction"`
	Position      string     `json:"position"`
	Status        Status     `json:"status"`
	LastAction    LastAction `json:"last_action"`
}

type Faction struct {
	ID        int                `json:"ID"`
	Name      string             `json:"name"`
	Tag       string             `json:"tag"`
	Respect   float64            `json:"respect"`
	Capacity  int                `json:"capacity"`
	BestChain int                `json:"best_chain"`
	Members   map[string]Member  `json:"members"`
	Stats     map[string]float64 `json:"stats"`
	Territory json.RawMessage    `json:"territory"`

	// Raw payload as received, kept for caching
	Raw json.RawMessage `json:"-"`
}

// MemberIDs lists the player ids of the faction members
func (f *Faction) MemberIDs() []int {
	ids := make([]int, 0, len(f.Members))
	for key := range f.Members {
		if id, err := strconv.Atoi(key); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Torn sends an empty array instead of an empty object when there is no territory
func (f *Faction) TerritoryCount() int {
	var territory map[string]json.RawMessage
	if err := json.Unmarshal(f.Territory, &territory); err != nil {
		return 0
	}
	return len(territory)
}

type Chain struct {
	Current  int     `json:"current"`
	Max      int     `json:"max"`
	Timeout  int     `json:"timeout"` // seconds until the chain breaks
	Modifier float64 `json:"modifier"`
	Cooldown int     `json:"cooldown"`
	Start    int64   `json:"start"`
}

func (c Chain) Active() bool {
	return c.Current > 0 && c.Timeout > 0 && c.Cooldown == 0
}

type Attack struct {
	ID                 string  `json:"-"`
	Code               string  `json:"code"`
	TimestampStarted   int64   `json:"timestamp_started"`
	TimestampEnded     int64   `json:"timestamp_ended"`
	AttackerID         FlexInt `json:"attacker_id"`
	AttackerName       string  `json:"attacker_name"`
	AttackerFaction    FlexInt `json:"attacker_faction"`
	AttackerFactionTag string  `json:"attacker_factionname"`
	DefenderID         FlexInt `json:"defender_id"`
	DefenderName       string  `json:"defender_name"`
	DefenderFaction    FlexInt `json:"defender_faction"`
	DefenderFactionTag string  `json:"defender_factionname"`
	Result             string  `json:"result"`
	Stealthed          int     `json:"stealthed"`
	Respect            float64 `json:"respect"`
	Chain              int     `json:"chain"`
}

func (a Attack) Ended() time.Time {
	if a.TimestampEnded > 0 {
		return time.Unix(a.TimestampEnded, 0)
	}
	return time.Unix(a.TimestampStarted, 0)
}
