// Command mapcontrol computes the per-frame map-control series of a recording
// and prints them as JSON. With -db the recording and its series are also
// stored in Postgres.
//
// Usage:
//
//	go run ./cmd/mapcontrol/ -recording match.json -nav data/nav -round 3
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/roundscope/internal/analysis"
	"github.com/freeeve/roundscope/internal/logger"
	"github.com/freeeve/roundscope/internal/model"
	"github.com/freeeve/roundscope/internal/recording"
	"github.com/freeeve/roundscope/internal/repository/postgres"
	"github.com/freeeve/roundscope/pkg/mapcontrol"
	"github.com/freeeve/roundscope/pkg/navmesh"
)

// selectRounds returns the rounds of g to analyze. round 0 selects all.
func selectRounds(g *model.Game, round int) ([]model.Round, error) {
	if round == 0 {
		return g.Rounds, nil
	}
	for _, r := range g.Rounds {
		if r.Number == round {
			return []model.Round{r}, nil
		}
	}
	return nil, fmt.Errorf("round %d not in recording %s", round, g.MatchID)
}

// controlSeries runs the map-control metric over rounds.
func controlSeries(meshes *navmesh.Registry, mapName string, rounds []model.Round, p mapcontrol.Params, opts mapcontrol.ReduceOptions) ([]model.MetricSeries, error) {
	mc, err := analysis.NewMapControl(meshes, mapName, p, opts)
	if err != nil {
		return nil, err
	}
	a := analysis.NewAnalyzer(mc)
	var out []model.MetricSeries
	for i := range rounds {
		out = append(out, a.Round(&rounds[i])...)
	}
	return out, nil
}

func main() {
	path := flag.String("recording", "", "Path to a recording JSON file")
	navDir := flag.String("nav", envOrDefault("NAV_DIR", "data/nav"), "Directory of nav meshes")
	round := flag.Int("round", 0, "Only analyze this round number (0 = all)")
	areaThreshold := flag.Float64("area-threshold", mapcontrol.DefaultParams().AreaThreshold, "Share of map area one player may claim")
	steps := flag.Int("steps", mapcontrol.DefaultParams().Steps, "Decay steps of the control value")
	norm := flag.Int("norm", int(mapcontrol.NormSigned), "0 = signed [-1,1], 1 = unit [0,1], 2 = unnormalized")
	absolute := flag.Bool("absolute", false, "Use raw T control instead of T's share")
	occupiedOnly := flag.Bool("occupied-only", true, "Only count tiles either team reached")
	dbURL := flag.String("db", "", "Store the recording and series in this Postgres")
	migrations := flag.String("migrations", envOrDefault("MIGRATIONS_DIR", "migrations"), "Migrations applied before storing (empty = none)")
	flag.Parse()

	logger.Init("mapcontrol")
	if *path == "" {
		log.Fatal().Msg("-recording is required")
	}

	meshes, err := navmesh.LoadDir(*navDir)
	if err != nil {
		log.Fatal().Err(err).Str("nav", *navDir).Msg("Failed to load nav meshes")
	}
	g, err := recording.Load(*path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load recording")
	}
	rounds, err := selectRounds(g, *round)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid round")
	}

	p := mapcontrol.Params{AreaThreshold: *areaThreshold, Steps: *steps}
	opts := mapcontrol.ReduceOptions{OccupiedOnly: *occupiedOnly, Norm: mapcontrol.Norm(*norm), Absolute: *absolute}
	series, err := controlSeries(meshes, g.MapName, rounds, p, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Map control failed")
	}

	if *dbURL != "" {
		if err := store(context.Background(), *dbURL, *migrations, g, *path, series); err != nil {
			log.Fatal().Err(err).Msg("Failed to store series")
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(series); err != nil {
		log.Fatal().Err(err).Msg("Failed to write series")
	}
}

func store(ctx context.Context, dbURL, migrations string, g *model.Game, source string, series []model.MetricSeries) error {
	db, err := postgres.Connect(ctx, dbURL, 2)
	if err != nil {
		return err
	}
	defer db.Close()
	if migrations != "" {
		if err := postgres.Migrate(ctx, db, migrations); err != nil {
			return err
		}
	}

	rec, err := postgres.NewRecordingRepo(db).Create(ctx, g.MatchID, g.MapName, source, len(g.Rounds))
	if err != nil {
		return err
	}
	for i := range series {
		series[i].RecordingID = rec.ID
	}
	if err := postgres.NewMetricRepo(db).SaveSeries(ctx, rec.ID, series); err != nil {
		return err
	}
	log.Info().Str("recording", rec.ID).Int("series", len(series)).Msg("Series stored")
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
