package library

import (
	"sort"

	"github.com/sahilm/fuzzy"
	"golang.org/x/text/cases"
)

type gameSource []Game

func (s gameSource) String(i int) string { return s[i].Title + " " + string(s[i].ID) }
func (s gameSource) Len() int            { return len(s) }

// Filter returns the games whose title or ID fuzzily matches query, best
// match first. An empty query returns games unchanged.
func Filter(games []Game, query string) []Game {
	if query == "" {
		return games
	}
	matches := fuzzy.FindFrom(query, gameSource(games))
	out := make([]Game, 0, len(matches))
	for _, m := range matches {
		out = append(out, games[m.Index])
	}
	return out
}

// SortByTitle orders games by case-folded title, then ID.
func SortByTitle(games []Game) {
	fold := cases.Fold()
	keys := make(map[string]string, len(games))
	key := func(g Game) string {
		k, ok := keys[g.Title]
		if !ok {
			k = fold.String(g.Title)
			keys[g.Title] = k
		}
		return k
	}
	sort.SliceStable(games, func(i, j int) bool {
		a, b := key(games[i]), key(games[j])
		if a != b {
			return a < b
		}
		return games[i].ID < games[j].ID
	})
}
