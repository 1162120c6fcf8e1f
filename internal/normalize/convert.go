package normalize

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"nflstats/ingestion/internal/models"
	"nflstats/ingestion/internal/season"
)

// ErrMalformedRecord marks a row excluded from its batch
var ErrMalformedRecord = errors.New("malformed record")

// RowError describes one excluded row. Line is the 1-based line in the source
// file, counting the header as line 1.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedRecord, fmt.Sprintf(format, args...))
}

// rowReader reads typed values out of one row of a normalized table
type rowReader struct {
	t   *Table
	i   int
	err error
}

// newRowReader rejects up front a row holding text the store cannot hold:
// invalid UTF-8 or NUL bytes, in any column
func newRowReader(t *Table, i int) *rowReader {
	r := &rowReader{t: t, i: i}
	for c, cell := range t.Rows[i] {
		if !cell.Valid {
			continue
		}
		if !utf8.ValidString(cell.String) {
			r.fail(malformed("%s: invalid UTF-8", t.Columns[c]))
			break
		}
		if strings.ContainsRune(cell.String, 0) {
			r.fail(malformed("%s: contains NUL byte", t.Columns[c]))
			break
		}
	}
	return r
}

func (r *rowReader) str(col string) sql.NullString {
	v, ok := r.t.Value(r.i, col)
	if !ok {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.TrimSpace(v), Valid: true}
}

func (r *rowReader) requiredStr(col string) string {
	v := r.str(col)
	if !v.Valid || v.String == "" {
		r.fail(malformed("missing %s", col))
	}
	return v.String
}

func (r *rowReader) requiredInt(col string) int {
	v := r.str(col)
	if !v.Valid {
		r.fail(malformed("missing %s", col))
		return 0
	}
	n, err := parseInt(v.String)
	if err != nil {
		r.fail(malformed("%s: %v", col, err))
	}
	return n
}

func (r *rowReader) optInt(col string) sql.NullInt32 {
	v := r.str(col)
	if !v.Valid {
		return sql.NullInt32{}
	}
	n, err := parseInt(v.String)
	if err != nil {
		r.fail(malformed("%s: %v", col, err))
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(n), Valid: true}
}

func (r *rowReader) optFloat(col string) sql.NullFloat64 {
	v := r.str(col)
	if !v.Valid {
		return sql.NullFloat64{}
	}
	f, err := strconv.ParseFloat(v.String, 64)
	if err != nil {
		r.fail(malformed("%s: not a number %q", col, v.String))
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func (r *rowReader) optBool(col string) sql.NullBool {
	v := r.str(col)
	if !v.Valid {
		return sql.NullBool{}
	}
	b, err := parseBool(v.String)
	if err != nil {
		r.fail(malformed("%s: %v", col, err))
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: b, Valid: true}
}

func (r *rowReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// parseInt accepts "7" as well as the "7.0" pandas writes for nullable int
// columns. Values must fit the 32-bit INTEGER columns they are stored in.
func parseInt(s string) (int, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err == nil {
		return int(n), nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("integer out of range %q", s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer %q", s)
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("integer out of range %q", s)
	}
	return int(f), nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "1.0", "true", "t", "yes", "y":
		return true, nil
	case "0", "0.0", "false", "f", "no", "n":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean %q", s)
}

// ToPlays converts a table normalized to PlaySchema. Rows with a missing key
// field, a non-numeric drive/play number or an unknown week label are excluded
// and reported.
func ToPlays(t *Table) ([]*models.Play, []RowError) {
	plays := make([]*models.Play, 0, t.Len())
	var rejected []RowError

	for i := range t.Rows {
		r := newRowReader(t, i)
		p := &models.Play{
			Season:             r.requiredInt("season"),
			Week:               r.requiredStr("week"),
			Day:                r.str("day"),
			Date:               r.str("date"),
			AwayTeam:           strings.ToUpper(r.requiredStr("away_team")),
			HomeTeam:           strings.ToUpper(r.requiredStr("home_team")),
			Quarter:            r.requiredStr("quarter"),
			DriveNumber:        r.requiredInt("drive_number"),
			TeamWithPossession: r.str("team_with_possession"),
			IsScoringDrive:     r.optBool("is_scoring_drive"),
			PlayNumberInDrive:  r.requiredInt("play_number_in_drive"),
			IsScoringPlay:      r.optBool("is_scoring_play"),
			PlayOutcome:        r.str("play_outcome"),
			PlayDescription:    r.str("play_description"),
			PlayStart:          r.str("play_start"),
		}
		if r.err == nil {
			order, err := season.OrderKey(p.Week)
			if err != nil {
				r.fail(err)
			}
			p.WeekOrder = order
		}
		if r.err == nil && p.PlayNumberInDrive < 1 {
			r.fail(malformed("play_number_in_drive must be >= 1, got %d", p.PlayNumberInDrive))
		}
		if r.err != nil {
			rejected = append(rejected, RowError{Line: i + 2, Err: r.err})
			continue
		}
		plays = append(plays, p)
	}

	return plays, rejected
}

// ToGames converts a table normalized to GameSchema. Besides parse failures,
// rows violating the score invariants are excluded: both scores present or
// both absent, and a final game has at most one winner, and has one unless
// it ended tied or without a score.
func ToGames(t *Table) ([]*models.Game, []RowError) {
	games := make([]*models.Game, 0, t.Len())
	var rejected []RowError

	for i := range t.Rows {
		r := newRowReader(t, i)
		g := &models.Game{
			Season:      r.requiredInt("season"),
			Week:        r.requiredStr("week"),
			GameStatus:  r.str("game_status"),
			Day:         r.str("day"),
			Date:        r.requiredStr("date"),
			AwayTeam:    strings.ToUpper(r.requiredStr("away_team")),
			AwayRecord:  r.str("away_record"),
			AwayScore:   r.optFloat("away_score"),
			AwayWin:     r.optFloat("away_win"),
			HomeTeam:    strings.ToUpper(r.requiredStr("home_team")),
			HomeRecord:  r.str("home_record"),
			HomeScore:   r.optFloat("home_score"),
			HomeWin:     r.optFloat("home_win"),
			AwaySeeding: r.optInt("away_seeding"),
			HomeSeeding: r.optInt("home_seeding"),
		}

		// A playoff round is always postseason; the column may only confirm it
		g.PostSeason = season.IsPlayoffRound(g.Week)
		if post := r.optBool("post_season"); post.Valid && r.err == nil {
			if g.PostSeason && !post.Bool {
				r.fail(malformed("week %q is a playoff round but post_season is 0", g.Week))
			}
			g.PostSeason = post.Bool
		}

		if r.err == nil {
			order, err := season.OrderKey(g.Week)
			if err != nil {
				r.fail(err)
			}
			g.WeekOrder = order
		}
		if r.err == nil {
			r.fail(validateGame(g))
		}
		if r.err != nil {
			rejected = append(rejected, RowError{Line: i + 2, Err: r.err})
			continue
		}
		games = append(games, g)
	}

	return games, rejected
}

func validateGame(g *models.Game) error {
	if g.AwayScore.Valid != g.HomeScore.Valid {
		return malformed("away_score and home_score must both be present or both absent")
	}
	if !g.IsFinal() {
		return nil
	}
	if g.AwayWon() && g.HomeWon() {
		return malformed("final game has two winners")
	}
	if !g.AwayWon() && !g.HomeWon() && g.AwayScore.Valid && g.AwayScore.Float64 != g.HomeScore.Float64 {
		return malformed("final game has no winner")
	}
	return nil
}

// ToTeamStats converts a table normalized to TeamStatSchema. When seasonType is
// non-empty it overrides the file's season_type column, since release assets
// are split by season type.
func ToTeamStats(t *Table, seasonType string) ([]*models.TeamSeasonStat, []RowError) {
	stats := make([]*models.TeamSeasonStat, 0, t.Len())
	var rejected []RowError

	for i := range t.Rows {
		r := newRowReader(t, i)
		yr := r.requiredInt("season")
		team := strings.ToUpper(r.requiredStr("team"))

		st := seasonType
		if st == "" {
			st = strings.ToUpper(r.requiredStr("season_type"))
		}
		if r.err == nil && st != models.SeasonTypeRegular && st != models.SeasonTypePost {
			r.fail(malformed("season_type must be REG or POST, got %q", st))
		}
		if r.err != nil {
			rejected = append(rejected, RowError{Line: i + 2, Err: r.err})
			continue
		}

		s := models.NewTeamSeasonStat(yr, team, st)
		for _, col := range models.TeamStatMetricColumns {
			if v, ok := t.Value(i, col); ok {
				s.SetMetric(col, v)
			}
		}
		stats = append(stats, s)
	}

	return stats, rejected
}
