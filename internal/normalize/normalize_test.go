package normalize

import (
	"errors"
	"strings"
	"testing"

	"nflstats/ingestion/internal/models"
	"nflstats/ingestion/internal/season"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const playsCSV = `Season,Week,Day,Date,AwayTeam,HomeTeam,Quarter,DriveNumber,TeamWithPossession,IsScoringDrive,PlayNumberInDrive,IsScoringPlay,PlayOutcome,PlayDescription,PlayStart
2024,Wild Card,Sun,2025-01-12,BUF,KC,1st,1,BUF,1,1,0,Rush,J.Allen left end to KC 40,BUF 25
2024,Wild Card,Sun,2025-01-12,BUF,KC,1st,1,BUF,1,2,1,Touchdown,J.Cook 40 yard run,KC 40
2024,Wild Card,Sun,2025-01-12,BUF,KC,1st,2,KC,0,1,0,Pass,P.Mahomes pass short right,KC 25
`

func TestParse(t *testing.T) {
	tbl, err := Parse(strings.NewReader(playsCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, "Season", tbl.Columns[0])

	v, ok := tbl.Value(1, "PlayOutcome")
	assert.True(t, ok)
	assert.Equal(t, "Touchdown", v)
}

func TestParse_NotTabular(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"ragged rows", "a,b,c\n1,2,3\n4,5\n"},
		{"broken quoting", "a,b\n\"1,2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchema))

			var se *SchemaError
			assert.True(t, errors.As(err, &se))
		})
	}
}

func TestParse_NullMarkers(t *testing.T) {
	tbl, err := Parse(strings.NewReader("\ufeffa,b,c\n,NA,x\n"))
	require.NoError(t, err)
	assert.Equal(t, "a", tbl.Columns[0], "byte order mark should be stripped")

	_, ok := tbl.Value(0, "a")
	assert.False(t, ok)
	_, ok = tbl.Value(0, "b")
	assert.False(t, ok)
	v, ok := tbl.Value(0, "c")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestNormalize_OrderAndNames(t *testing.T) {
	// Columns shuffled, mixed naming styles, one extra column
	src := "home_team,Away Team,season,Week,Extra,date\nKC,BUF,2024,3,zzz,2024-09-22\n"
	tbl, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	out := Normalize(tbl, GameSchema)
	assert.Equal(t, GameSchema.Columns, out.Columns)
	assert.False(t, out.HasColumn("Extra"))

	for col, want := range map[string]string{
		"season":    "2024",
		"week":      "3",
		"away_team": "BUF",
		"home_team": "KC",
		"date":      "2024-09-22",
	} {
		v, ok := out.Value(0, col)
		assert.True(t, ok, col)
		assert.Equal(t, want, v, col)
	}
}

func TestNormalize_MissingColumnIsNull(t *testing.T) {
	// PlayStart is absent in this release
	src := strings.Replace(playsCSV, ",PlayStart", "", 1)
	lines := strings.Split(strings.TrimSpace(src), "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = lines[i][:strings.LastIndex(lines[i], ",")]
	}
	tbl, err := Parse(strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)

	out := Normalize(tbl, PlaySchema)
	require.Equal(t, 3, out.Len())
	for i := 0; i < out.Len(); i++ {
		_, ok := out.Value(i, "play_start")
		assert.False(t, ok, "row %d play_start should be null", i)
	}

	// Neighbouring columns keep their values
	desc, ok := out.Value(1, "play_description")
	require.True(t, ok)
	assert.Equal(t, "J.Cook 40 yard run", desc)
	outcome, _ := out.Value(2, "play_outcome")
	assert.Equal(t, "Pass", outcome)

	assert.Equal(t, []string{"play_start"}, MissingColumns(tbl, PlaySchema))
}

func TestNormalize_Aliases(t *testing.T) {
	src := "season,recent_team,interceptions,sacks,passing_yards\n2023,buf,12,25,4300\n"
	tbl, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	out := Normalize(tbl, TeamStatSchema)
	team, _ := out.Value(0, "team")
	assert.Equal(t, "buf", team)
	ints, _ := out.Value(0, "passing_interceptions")
	assert.Equal(t, "12", ints)
	sacks, _ := out.Value(0, "sacks_suffered")
	assert.Equal(t, "25", sacks)
}

func TestToPlays(t *testing.T) {
	tbl, err := Parse(strings.NewReader(playsCSV))
	require.NoError(t, err)

	plays, rejected := ToPlays(Normalize(tbl, PlaySchema))
	require.Empty(t, rejected)
	require.Len(t, plays, 3)

	p := plays[1]
	assert.Equal(t, 2024, p.Season)
	assert.Equal(t, "Wild Card", p.Week)
	assert.Equal(t, season.WildCardKey, p.WeekOrder)
	assert.Equal(t, 1, p.DriveNumber)
	assert.Equal(t, 2, p.PlayNumberInDrive)
	assert.True(t, p.IsScoringPlay.Bool)
	assert.Equal(t, "KC 40", p.PlayStart.String)
}

func TestToPlays_RejectsMalformedRows(t *testing.T) {
	src := `season,week,away_team,home_team,quarter,drive_number,play_number_in_drive
2024,1,BUF,ARI,1st,1,1
2024,1,BUF,ARI,1st,one,2
2024,Bye,BUF,ARI,1st,1,3
2024,1,BUF,ARI,1st,2,1.0
`
	tbl, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	plays, rejected := ToPlays(Normalize(tbl, PlaySchema))
	assert.Len(t, plays, 2)
	require.Len(t, rejected, 2)

	assert.Equal(t, 3, rejected[0].Line)
	assert.ErrorIs(t, rejected[0], ErrMalformedRecord)
	assert.Equal(t, 4, rejected[1].Line)
	assert.ErrorIs(t, rejected[1], season.ErrInvalidWeekLabel)
}

func TestToGames(t *testing.T) {
	src := `Season,Week,GameStatus,Day,Date,AwayTeam,AwayRecord,AwayScore,AwayWin,HomeTeam,HomeRecord,HomeScore,HomeWin,AwaySeeding,HomeSeeding,PostSeason
2024,1,Final,Sun,2024-09-08,ARI,0-1,28.0,0.0,BUF,1-0,34.0,1.0,,,0
2024,Wild Card,Final,Sun,2025-01-12,DEN,10-7,7.0,0.0,BUF,13-4,31.0,1.0,7.0,2.0,1
2024,18,Scheduled,Sun,2025-01-05,NYJ,,,,MIA,,,,,,
2024,2,Final,Sun,2024-09-15,LV,,20.0,1.0,BAL,,20.0,1.0,,,0
2024,3,Final,Sun,2024-09-22,LV,,20.0,,CAR,,,,,,0
2022,17,Final,Mon,2023-01-02,BUF,,,0,CIN,,,0,,,0
`
	tbl, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	games, rejected := ToGames(Normalize(tbl, GameSchema))
	require.Len(t, games, 4)
	require.Len(t, rejected, 2)
	assert.Equal(t, 5, rejected[0].Line, "two winners")
	assert.Equal(t, 6, rejected[1].Line, "only one score")

	wc := games[1]
	assert.True(t, wc.PostSeason)
	assert.Equal(t, season.WildCardKey, wc.WeekOrder)
	assert.Equal(t, int32(7), wc.AwaySeeding.Int32)
	assert.True(t, wc.HomeWon())

	scheduled := games[2]
	assert.False(t, scheduled.AwayScore.Valid)
	assert.False(t, scheduled.HomeScore.Valid)
	assert.False(t, scheduled.PostSeason)

	// A final game without scores or winner (cancelled, tied) is accepted
	assert.Equal(t, 2022, games[3].Season)
}

func TestToTeamStats(t *testing.T) {
	src := "season,team,season_type,games,passing_yards,fg_pct\n2024,kc,REG,17,3900,0.9\n2024,BUF,REG,,4100,\nbad,BUF,REG,17,1,1\n"
	tbl, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	stats, rejected := ToTeamStats(Normalize(tbl, TeamStatSchema), models.SeasonTypePost)
	require.Len(t, stats, 2)
	require.Len(t, rejected, 1)

	kc := stats[0]
	assert.Equal(t, "KC", kc.Team)
	assert.Equal(t, models.SeasonTypePost, kc.SeasonType, "file type overrides column")
	games, ok := kc.Metric("games")
	require.True(t, ok)
	assert.Equal(t, "17", games.String)

	buf := stats[1]
	g, _ := buf.Metric("games")
	assert.False(t, g.Valid)
	rush, _ := buf.Metric("rushing_yards")
	assert.False(t, rush.Valid, "columns missing from the file are null")
	assert.Len(t, buf.Values(), len(models.TeamStatColumns))
}

func TestToTeamStats_SeasonTypeFromColumn(t *testing.T) {
	src := "season,team,season_type\n2024,KC,POST\n2024,KC,PRE\n"
	tbl, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	stats, rejected := ToTeamStats(Normalize(tbl, TeamStatSchema), "")
	require.Len(t, stats, 1)
	assert.Equal(t, models.SeasonTypePost, stats[0].SeasonType)
	assert.Len(t, rejected, 1)
}

func TestToPlays_RejectsValuesTheStoreCannotHold(t *testing.T) {
	src := "season,week,away_team,home_team,quarter,drive_number,play_number_in_drive,play_description\n" +
		"2024,Wild Card,BUF,KC,1st,1,1,J.Allen sacked\n" +
		"2024,Wild Card,BUF,KC,1st,1,2,Nu\xf1ez tackle\n" +
		"2024,Wild Card,BUF,KC,1st,99999999999,1,Kneel\n" +
		"2024,Wild Card,BUF,KC,1st,2,3e10,Kneel\n" +
		"2024,Wild Card,BUF,KC,1st,2,2,Spike\x00\n"
	tbl, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	plays, rejected := ToPlays(Normalize(tbl, PlaySchema))
	require.Len(t, plays, 1)
	assert.Equal(t, "J.Allen sacked", plays[0].PlayDescription.String)

	require.Len(t, rejected, 4)
	for i, line := range []int{3, 4, 5, 6} {
		assert.Equal(t, line, rejected[i].Line)
		assert.ErrorIs(t, rejected[i], ErrMalformedRecord)
	}
	assert.Contains(t, rejected[0].Error(), "invalid UTF-8")
	assert.Contains(t, rejected[1].Error(), "out of range")
	assert.Contains(t, rejected[2].Error(), "out of range")
	assert.Contains(t, rejected[3].Error(), "NUL")
}

func TestToGames_SeedingOutOfRange(t *testing.T) {
	src := `season,week,game_status,date,away_team,away_score,away_win,home_team,home_score,home_win,away_seeding,home_seeding,post_season
2024,Wild Card,Final,2025-01-12,DEN,7,0,BUF,31,1,4294967297,2,1
2024,Wild Card,Final,2025-01-12,PIT,14,0,BAL,28,1,-2147483648,3.0,1
`
	tbl, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	games, rejected := ToGames(Normalize(tbl, GameSchema))
	require.Len(t, rejected, 1)
	assert.Equal(t, 2, rejected[0].Line)
	assert.ErrorIs(t, rejected[0], ErrMalformedRecord)

	require.Len(t, games, 1)
	assert.Equal(t, int32(-2147483648), games[0].AwaySeeding.Int32)
	assert.Equal(t, int32(3), games[0].HomeSeeding.Int32)
}

func TestToGames_PlayoffRoundIsPostseason(t *testing.T) {
	src := `season,week,game_status,date,away_team,away_score,away_win,home_team,home_score,home_win,post_season
2024,Divisional,Final,2025-01-18,HOU,14,0,KC,23,1,0
2024,Divisional,Final,2025-01-19,LA,22,0,PHI,28,1,
2024,Super Bowl,Final,2025-02-09,KC,22,0,PHI,40,1,1
`
	tbl, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	games, rejected := ToGames(Normalize(tbl, GameSchema))
	require.Len(t, rejected, 1)
	assert.Equal(t, 2, rejected[0].Line)
	assert.ErrorIs(t, rejected[0], ErrMalformedRecord)

	require.Len(t, games, 2)
	assert.True(t, games[0].PostSeason, "derived from the round name")
	assert.True(t, games[1].PostSeason)
}
