// Command aggregate builds a routine tracker and position heatmap from a
// directory of recordings. Both are written to files, stored in Redis as one
// snapshot, or both, and a JSON summary is printed to stdout.
//
// Usage:
//
//	go run ./cmd/aggregate/ -dir data/recordings -map de_dust2 -out dust2.trk -heatmap-out dust2.heat
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/roundscope/internal/aggregate"
	"github.com/freeeve/roundscope/internal/logger"
	redisrepo "github.com/freeeve/roundscope/internal/repository/redis"
	"github.com/freeeve/roundscope/pkg/navmesh"
	"github.com/freeeve/roundscope/pkg/tile"
)

type summary struct {
	Map        string      `json:"map"`
	Aggregated int         `json:"aggregated"`
	Skipped    int         `json:"skipped"`
	Failed     []string    `json:"failed,omitempty"`
	Routines   uint64      `json:"routines"`
	Distinct   int         `json:"distinct"`
	Positions  uint64      `json:"positions"`
	Hottest    *tile.Coord `json:"hottest,omitempty"`
	Snapshot   string      `json:"snapshot,omitempty"`
	Out        string      `json:"out,omitempty"`
	HeatmapOut string      `json:"heatmap_out,omitempty"`
}

func summarize(res *aggregate.Result, mapName string) summary {
	s := summary{
		Map:        mapName,
		Aggregated: len(res.Aggregated),
		Skipped:    len(res.SkippedMap),
		Failed:     res.Failed,
		Routines:   res.Tracker.Len(),
		Distinct:   res.Tracker.Distinct(),
		Positions:  res.Positions.Total(),
	}
	if tc, _, ok := res.Positions.Hottest(); ok {
		s.Hottest = &tc
	}
	return s
}

// writeBlobs writes the tracker snapshot to out and the heatmap to heatOut,
// skipping either when its path is empty.
func writeBlobs(res *aggregate.Result, out, heatOut string) error {
	if out != "" {
		blob, err := res.Tracker.MarshalBinary()
		if err != nil {
			return fmt.Errorf("encode tracker: %w", err)
		}
		if err := os.WriteFile(out, blob, 0o644); err != nil {
			return fmt.Errorf("write tracker: %w", err)
		}
	}
	if heatOut != "" {
		blob, err := res.Positions.MarshalBinary()
		if err != nil {
			return fmt.Errorf("encode heatmap: %w", err)
		}
		if err := os.WriteFile(heatOut, blob, 0o644); err != nil {
			return fmt.Errorf("write heatmap: %w", err)
		}
	}
	return nil
}

// radarFor returns the radar transform of mapName from the meshes in navDir.
// Without a nav directory positions stay in world space.
func radarFor(navDir, mapName string) (navmesh.Radar, error) {
	if navDir == "" {
		return navmesh.Radar{}, nil
	}
	meshes, err := navmesh.LoadDir(navDir)
	if err != nil {
		return navmesh.Radar{}, err
	}
	mesh, err := meshes.Lookup(mapName)
	if err != nil {
		return navmesh.Radar{}, err
	}
	return mesh.Radar(), nil
}

func main() {
	dir := flag.String("dir", "", "Directory of *.json recordings")
	mapName := flag.String("map", "", "Map to aggregate, e.g. de_dust2")
	navDir := flag.String("nav", os.Getenv("NAV_DIR"), "Directory of nav meshes providing the radar transform")
	tileLength := flag.Float64("tile-length", 20, "Tile side length in radar units")
	routineLength := flag.Int("routine-length", 5, "Frames per routine")
	limit := flag.Int("limit", 0, "Maximum recordings to aggregate (0 = all)")
	workers := flag.Int("workers", 4, "Recordings loaded in parallel")
	out := flag.String("out", "", "Write the tracker snapshot to this file")
	heatOut := flag.String("heatmap-out", "", "Write the position heatmap to this file")
	redisURL := flag.String("redis", "", "Store the tracker and heatmap in this Redis")
	redisPrefix := flag.String("redis-prefix", envOrDefault("REDIS_PREFIX", redisrepo.DefaultPrefix), "Key prefix in Redis")
	flag.Parse()

	logger.Init("aggregate")
	if *dir == "" || *mapName == "" {
		log.Fatal().Msg("-dir and -map are required")
	}

	radar, err := radarFor(*navDir, *mapName)
	if err != nil {
		log.Fatal().Err(err).Str("nav", *navDir).Msg("Failed to load radar")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := aggregate.Directory(ctx, *dir, aggregate.Options{
		MapName:       *mapName,
		TileLength:    *tileLength,
		RoutineLength: *routineLength,
		Workers:       *workers,
		Radar:         radar,
		Limit:         *limit,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Aggregation failed")
	}
	s := summarize(res, *mapName)

	if err := writeBlobs(res, *out, *heatOut); err != nil {
		log.Fatal().Err(err).Msg("Failed to write snapshot files")
	}
	s.Out, s.HeatmapOut = *out, *heatOut

	if *redisURL != "" {
		client, err := redisrepo.NewClient(ctx, *redisURL, *redisPrefix)
		if err != nil {
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		defer client.Close()
		snap, err := client.Save(ctx, res.Tracker, res.Positions)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to store tracker")
		}
		s.Snapshot = snap.ID
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		log.Fatal().Err(err).Msg("Failed to write summary")
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
