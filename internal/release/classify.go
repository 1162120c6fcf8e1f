package release

import (
	"regexp"
	"strconv"
	"strings"

	"nflstats/ingestion/internal/models"
)

// Team stat assets are named stats_team_<reg|post>_<year>.csv
const (
	regularPrefix    = "stats_team_reg_"
	postseasonPrefix = "stats_team_post_"
)

var yearPattern = regexp.MustCompile(`\d{4}`)

// Classify derives the file type and season year from an asset name such as
// "stats_team_reg_2024.csv". ok is false for any other release asset,
// including player and play-by-play files that share the tag.
func Classify(name string) (fileType models.FileType, year int, ok bool) {
	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, ".csv") {
		return "", 0, false
	}

	switch {
	case strings.HasPrefix(lower, regularPrefix):
		fileType = models.FileTypeRegular
	case strings.HasPrefix(lower, postseasonPrefix):
		fileType = models.FileTypePostseason
	default:
		return "", 0, false
	}

	m := yearPattern.FindString(lower)
	if m == "" {
		return "", 0, false
	}
	year, _ = strconv.Atoi(m)
	return fileType, year, true
}
