package mirrors

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindSpy          // {"spy": {...}}
	KindStatus       // {"status": "ok", "stats": {...}}
	KindUser         // {"user": {...}}
	KindBare         // {"strength": .., "speed": .., ...}
)

var ErrUnknownShape = errors.New("mirror response has no recognisable stats")

// Canonical stat report, whatever mirror it came from
type Spy struct {
	Provider  Provider
	Name      string
	Level     int
	Strength  float64
	Speed     float64
	Dexterity float64
	Defense   float64
	Total     float64
	UpdatedAt time.Time // zero when the mirror did not say
}

func (s Spy) Complete() bool {
	return s.Strength > 0 && s.Speed > 0 && s.Dexterity > 0 && s.Defense > 0
}

// One decoded response: which envelope it used and the stat body inside it
type Envelope struct {
	Kind Kind
	Body map[string]json.RawMessage
}

func Decode(data []byte) (Envelope, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return Envelope{}, err
	}

	if raw, ok := top["spy"]; ok {
		if body, ok := object(raw); ok {
			return Envelope{Kind: KindSpy, Body: body}, nil
		}
	}
	if raw, ok := top["stats"]; ok && statusOK(top["status"]) {
		if body, ok := object(raw); ok {
			return Envelope{Kind: KindStatus, Body: body}, nil
		}
	}
	if raw, ok := top["user"]; ok {
		if body, ok := object(raw); ok {
			return Envelope{Kind: KindUser, Body: body}, nil
		}
	}
	if hasAll(top, "strength", "speed", "dexterity", "defense") {
		return Envelope{Kind: KindBare, Body: top}, nil
	}
	return Envelope{Kind: KindUnknown}, ErrUnknownShape
}

// Normalize converts any envelope into the canonical report
func (e Envelope) Normalize(provider Provider) (Spy, error) {
	if e.Kind == KindUnknown {
		return Spy{}, ErrUnknownShape
	}
	spy := Spy{
		Provider:  provider,
		Name:      firstString(e.Body, "name", "player_name"),
		Level:     int(firstNumber(e.Body, "level", "player_level")),
		Strength:  firstNumber(e.Body, "strength", "str"),
		Speed:     firstNumber(e.Body, "speed", "spd"),
		Dexterity: firstNumber(e.Body, "dexterity", "dex"),
		Defense:   firstNumber(e.Body, "defense", "def"),
		Total:     firstNumber(e.Body, "total"),
		UpdatedAt: firstTime(e.Body, "timestamp", "update_time", "updated"),
	}
	if spy.Total == 0 {
		spy.Total = spy.Strength + spy.Speed + spy.Dexterity + spy.Defense
	}
	return spy, nil
}

func Parse(provider Provider, data []byte) (Spy, error) {
	envelope, err := Decode(data)
	if err != nil {
		return Spy{}, err
	}
	return envelope.Normalize(provider)
}

func object(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return nil, false
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, false
	}
	return body, true
}

// "ok" or true
func statusOK(raw json.RawMessage) bool {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.EqualFold(s, "ok")
	}
	var b bool
	return json.Unmarshal(raw, &b) == nil && b
}

func hasAll(m map[string]json.RawMessage, keys ...string) bool {
	for _, key := range keys {
		if _, ok := m[key]; !ok {
			return false
		}
	}
	return true
}

func firstString(m map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		var s string
		if raw, ok := m[key]; ok && json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

// Numbers may come quoted and with thousands separators
func firstNumber(m map[string]json.RawMessage, keys ...string) float64 {
	for _, key := range keys {
		raw, ok := m[key]
		if !ok {
			continue
		}
		var f float64
		if json.Unmarshal(raw, &f) == nil {
			return f
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

// Unix seconds, or a date string in one of the layouts mirrors use
func firstTime(m map[string]json.RawMessage, keys ...string) time.Time {
	layouts := []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}
	for _, key := range keys {
		raw, ok := m[key]
		if !ok {
			continue
		}
		var n float64
		if json.Unmarshal(raw, &n) == nil && n > 0 {
			return time.Unix(int64(n), 0)
		}
		var s string
		if json.Unmarshal(raw, &s) != nil {
			continue
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
