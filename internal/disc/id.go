package disc

import "fmt"

// Console is the platform a disc image targets.
type Console int

const (
	ConsoleUnknown Console = iota
	ConsoleWii
	ConsoleGameCube
)

func (c Console) String() string {
	switch c {
	case ConsoleWii:
		return "Wii"
	case ConsoleGameCube:
		return "GameCube"
	default:
		return "unknown"
	}
}

// GameID is the 4 or 6 character product code at the start of a disc header,
// e.g. RMGE01. The first character encodes the console, the fourth the
// region, and the last two the publisher.
type GameID string

// ParseGameID validates s as a 4 or 6 character upper-case alphanumeric ID.
func ParseGameID(s string) (GameID, error) {
	if len(s) != 4 && len(s) != 6 {
		return "", fmt.Errorf("game id %q: expected 4 or 6 characters, got %d", s, len(s))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", fmt.Errorf("game id %q: invalid character %q", s, c)
		}
	}
	return GameID(s), nil
}

// Console infers the platform from the first character.
func (id GameID) Console() Console {
	if id == "" {
		return ConsoleUnknown
	}
	switch id[0] {
	case 'H', 'R', 'S', 'W', 'X':
		return ConsoleWii
	case 'D', 'G':
		return ConsoleGameCube
	default:
		return ConsoleUnknown
	}
}

// RegionCode is the fourth character, or zero for short IDs.
func (id GameID) RegionCode() byte {
	if len(id) < 4 {
		return 0
	}
	return id[3]
}

// Region names the market encoded in the ID.
func (id GameID) Region() string {
	if name, ok := regions[id.RegionCode()]; ok {
		return name
	}
	return "Unknown"
}

var regions = map[byte]string{
	'A': "System channels",
	'D': "Germany",
	'E': "USA",
	'F': "France",
	'H': "Netherlands",
	'I': "Italy",
	'J': "Japan",
	'K': "Korea",
	'L': "Japanese import (PAL)",
	'M': "American import (PAL)",
	'N': "Japanese import (NTSC)",
	'P': "Europe",
	'Q': "Japanese VC import (Korea)",
	'R': "Russia",
	'S': "Spain",
	'T': "American VC import (Korea)",
	'U': "Australia",
	'V': "Scandinavia",
	'W': "Taiwan / Hong Kong",
	'X': "Europe (alternate)",
	'Y': "Europe (alternate)",
	'Z': "Europe (alternate)",
}
