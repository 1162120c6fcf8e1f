// Command importer loads NFL stats in one pass: local play-by-play and
// scoreboard CSV files, then team season stats from a release tag. It exits
// non-zero when the store fails or a file could not be parsed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"nflstats/ingestion/internal/cache"
	"nflstats/ingestion/internal/config"
	"nflstats/ingestion/internal/importer"
	"nflstats/ingestion/internal/models"
	"nflstats/ingestion/internal/query"
	"nflstats/ingestion/internal/release"
	"nflstats/ingestion/internal/repository"
	"nflstats/ingestion/internal/syncer"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.MustLoad()

	dir := flag.String("dir", cfg.StatsDir, "directory of plays/scores CSV files; empty to skip")
	tag := flag.String("sync-tag", "stats_team", "release tag to sync team stats from; empty to skip")
	yearsFlag := flag.String("years", cfg.SyncYears, "comma separated seasons to sync; empty for all")
	summaryOnly := flag.Bool("summary-only", false, "print the store summary without importing")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	years, err := config.ParseYears(*yearsFlag)
	if err != nil {
		log.Error().Err(err).Msg("Invalid -years")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDatabase(ctx, repository.Config{
		DSN:       cfg.DatabaseDSN(),
		ChunkSize: cfg.IngestChunkSize,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to database")
		return 1
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to apply schema")
		return 1
	}

	queries := query.NewService(query.NewReader(db), openCache(ctx, cfg), cfg.CacheTTL())
	status := 0

	if !*summaryOnly {
		if *dir != "" {
			summary, err := importer.New(db).ImportDir(ctx, *dir)
			if err != nil {
				log.Error().Err(err).Msg("Import stopped")
				return 1
			}
			printImport(summary)
			if len(summary.Failed()) > 0 {
				status = 1
			}
			if err := queries.Invalidate(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to invalidate query cache")
			}
		}

		if *tag != "" {
			client := release.NewClient(release.Config{
				BaseURL:       cfg.GitHubBaseURL,
				Owner:         cfg.GitHubOwner,
				Repo:          cfg.GitHubRepo,
				Token:         cfg.GitHubToken,
				Timeout:       cfg.ReleaseTimeout,
				MaxConcurrent: cfg.SyncFetchConcurrency,
			})
			s := syncer.New(client, db, queries, syncer.Config{FetchConcurrency: cfg.SyncFetchConcurrency})
			report, err := s.Sync(ctx, *tag, years)
			if report != nil {
				printReport(report)
			}
			if err != nil {
				log.Error().Err(err).Str("tag", *tag).Msg("Sync stopped")
				return 1
			}
			if report.Count(syncer.OutcomeFailed) > 0 {
				status = 1
			}
		}
	}

	overview, err := queries.Overview(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to summarize store")
		return 1
	}
	printOverview(overview)
	return status
}

// openCache returns nil when Redis is disabled or unreachable
func openCache(ctx context.Context, cfg *config.Config) query.Cache {
	if !cfg.RedisEnabled {
		return nil
	}
	rc, err := cache.NewRedisCache(ctx, cache.Config{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Debug().Err(err).Msg("Redis unavailable, cache invalidation skipped")
		return nil
	}
	return rc
}

func printImport(s *importer.Summary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tKIND\tACCEPTED\tSKIPPED\tFAILED\tERROR")
	for _, f := range s.Files {
		errText := ""
		if f.Err != nil {
			errText = f.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n", f.Path, f.Kind, f.Rows.Accepted, f.Rows.Skipped, f.Rows.Failed, errText)
	}
	w.Flush()
	fmt.Printf("Import finished in %s\n\n", s.Duration.Round(time.Millisecond))
}

func printReport(r *syncer.Report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ASSET\tOUTCOME\tACCEPTED\tREPLACED\tFAILED\tREASON")
	for _, a := range r.Assets {
		reason := a.Reason
		if a.Err != nil {
			reason = a.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n", a.Asset.Name, a.Outcome, a.Rows.Accepted, a.Rows.Replaced, a.Rows.Failed, reason)
	}
	w.Flush()
	fmt.Printf("Sync of %s: %d ingested, %d skipped, %d failed, %d rows in %s\n\n",
		r.Tag, r.Count(syncer.OutcomeIngested), r.Count(syncer.OutcomeSkipped),
		r.Count(syncer.OutcomeFailed), r.RowsIngested(), r.Duration.Round(time.Millisecond))
}

func printOverview(o *models.Overview) {
	fmt.Println("Store summary")
	fmt.Printf("  plays:  %d rows, %d games, %d scoring plays, seasons %s\n",
		o.Plays.Total, o.Plays.UniqueGames, o.Plays.ScoringPlays, seasonRange(o.Plays.FirstSeason.Int32, o.Plays.LastSeason.Int32, o.Plays.FirstSeason.Valid))
	fmt.Printf("  games:  %d rows, %d final, %d postseason, seasons %s\n",
		o.Games.Total, o.Games.Final, o.Games.PostSeason, seasonRange(o.Games.FirstSeason.Int32, o.Games.LastSeason.Int32, o.Games.FirstSeason.Valid))
	for _, ts := range o.TeamStats {
		fmt.Printf("  team_stats %s: %d rows, %d seasons, %d teams\n", ts.SeasonType, ts.Rows, ts.Seasons, ts.Teams)
	}
	fmt.Printf("  ledger: %d assets\n", o.Assets)
}

func seasonRange(first, last int32, valid bool) string {
	if !valid {
		return "-"
	}
	return fmt.Sprintf("%d-%d", first, last)
}
