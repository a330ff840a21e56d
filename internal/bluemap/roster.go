package bluemap

import (
	"encoding/json"
	"errors"
	"fmt"
)

var errNotArray = errors.New("roster is not an array")

// Position is a player's block position, truncated from the map's float coordinates.
type Position struct {
	Name string
	X    int
	Y    int
	Z    int
}

func (p Position) String() string { return fmt.Sprintf("%d %d %d", p.X, p.Y, p.Z) }

type rosterEntry struct {
	Name     json.RawMessage `json:"name"`
	Position json.RawMessage `json:"position"`
}

type roster []rosterEntry

// decodeRoster requires a top-level array. Individual entries are decoded leniently.
func decodeRoster(body []byte) (roster, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errNotArray
	}
	out := make(roster, 0, len(raw))
	for _, item := range raw {
		var e rosterEntry
		if err := json.Unmarshal(item, &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r roster) find(player string) (Position, bool) {
	for _, e := range r {
		name, ok := e.name()
		if !ok || name != player {
			continue
		}
		p, _ := e.position()
		return p, true
	}
	return Position{}, false
}

func (e rosterEntry) name() (string, bool) {
	if len(e.Name) == 0 || string(e.Name) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(e.Name, &s); err != nil {
		return "", false
	}
	return s, true
}

func (e rosterEntry) position() (Position, bool) {
	name, ok := e.name()
	if !ok {
		return Position{}, false
	}
	var coords map[string]json.RawMessage
	if len(e.Position) > 0 {
		_ = json.Unmarshal(e.Position, &coords)
	}
	return Position{
		Name: name,
		X:    truncate(coord(coords, "x")),
		Y:    truncate(coord(coords, "y")),
		Z:    truncate(coord(coords, "z")),
	}, true
}

// coord returns 0 for absent or non-numeric fields.
func coord(m map[string]json.RawMessage, key string) float64 {
	raw, ok := m[key]
	if !ok {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0
	}
	return f
}
