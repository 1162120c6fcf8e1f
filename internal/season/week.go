// Package season defines the canonical chronological ordering of NFL week labels.
//
// Week labels are either small positive integers ("1".."18") or named slots
// ("Preseason 2", "Wild Card", "Super Bowl"). Ingestion persists OrderKey for every
// game and play, and retrieval sorts on that persisted value, so both sides always
// agree on season chronology.
package season

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidWeekLabel is returned for a week label that matches no known slot
var ErrInvalidWeekLabel = errors.New("invalid week label")

// Order keys for the named playoff rounds
const (
	PreseasonKey  = 0
	WildCardKey   = 19
	DivisionalKey = 20
	ConferenceKey = 21
	SuperBowlKey  = 22
)

var preseasonPattern = regexp.MustCompile(`(?i)^\s*(preseason|pre-season|hall of fame)\b`)

// playoffRounds maps normalized round names (lowercase, single spaced) to keys
var playoffRounds = map[string]int{
	"wild card":               WildCardKey,
	"wildcard":                WildCardKey,
	"divisional":              DivisionalKey,
	"division":                DivisionalKey,
	"conference":              ConferenceKey,
	"conference championship": ConferenceKey,
	"super bowl":              SuperBowlKey,
}

// OrderKey maps a week label to its position within a season.
// Preseason labels map to 0, playoff rounds to 19..22 and numbered weeks to themselves.
func OrderKey(label string) (int, error) {
	if preseasonPattern.MatchString(label) {
		return PreseasonKey, nil
	}

	norm := strings.ToLower(strings.Join(strings.Fields(label), " "))
	if key, ok := playoffRounds[norm]; ok {
		return key, nil
	}

	n, err := strconv.Atoi(norm)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWeekLabel, label)
	}
	return n, nil
}

// IsPlayoffRound reports whether the label names a playoff round
func IsPlayoffRound(label string) bool {
	norm := strings.ToLower(strings.Join(strings.Fields(label), " "))
	_, ok := playoffRounds[norm]
	return ok
}

// Key is the full sort key of a game within a season.
// Regular-season games sort before postseason games regardless of week key.
type Key struct {
	PostSeason bool
	Week       int
}

// NewKey builds a Key from a raw week label
func NewKey(label string, postSeason bool) (Key, error) {
	week, err := OrderKey(label)
	if err != nil {
		return Key{}, err
	}
	return Key{PostSeason: postSeason, Week: week}, nil
}

// Less reports whether k sorts before other
func (k Key) Less(other Key) bool {
	if k.PostSeason != other.PostSeason {
		return !k.PostSeason
	}
	return k.Week < other.Week
}

// Compare returns -1, 0 or 1
func (k Key) Compare(other Key) int {
	switch {
	case k.Less(other):
		return -1
	case other.Less(k):
		return 1
	default:
		return 0
	}
}

// SortLabels sorts week labels chronologically in place. Labels that cannot be
// ordered are rejected rather than guessed.
func SortLabels(labels []string, postSeason func(label string) bool) error {
	keys := make(map[string]Key, len(labels))
	for _, l := range labels {
		post := false
		if postSeason != nil {
			post = postSeason(l)
		}
		k, err := NewKey(l, post)
		if err != nil {
			return err
		}
		keys[l] = k
	}
	sort.SliceStable(labels, func(i, j int) bool {
		return keys[labels[i]].Less(keys[labels[j]])
	})
	return nil
}
