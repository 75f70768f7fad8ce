package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/kwv/countyatlas/geo"
)

// OptimizeOptions configures the offline optimizer mode.
type OptimizeOptions struct {
	Input  string   `long:"optimize" value-name:"FILE" description:"Optimize a source GeoJSON file and exit"`
	OutDir string   `long:"out-dir"  default:"."        description:"Directory for generated files"`
	Levels []string `long:"level"    description:"Detail levels to emit (repeatable; default all)"`
}

// runOptimize pre-generates one GeoJSON file per detail level from a
// source collection, plus the shared lookup table and a manifest.
func runOptimize(opts OptimizeOptions) error {
	raw, err := os.ReadFile(opts.Input)
	if err != nil {
		return fmt.Errorf("reading source file: %w", err)
	}

	source, err := geo.ParseFeatureCollection(raw)
	if err != nil {
		return fmt.Errorf("parsing source file: %w", err)
	}
	log.Info().
		Str("input", opts.Input).
		Int("features", len(source.Features)).
		Msg("Loaded source collection")

	levels, err := resolveLevels(opts.Levels)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	for _, level := range levels {
		optimized, err := geo.OptimizeCollection(source, level)
		if err != nil {
			return fmt.Errorf("optimizing level %s: %w", level, err)
		}

		path := filepath.Join(opts.OutDir, fmt.Sprintf("ca-counties-%s.geojson", level))
		if err := writeJSONFile(path, optimized); err != nil {
			return err
		}

		md := optimized.Metadata
		log.Info().
			Str("level", string(level)).
			Str("path", path).
			Int("features", md.OptimizedFeatureCount).
			Float64("compression", md.CompressionRatio).
			Msg("Wrote detail level")
	}

	lookupPath := filepath.Join(opts.OutDir, "county-lookup.json")
	if err := writeJSONFile(lookupPath, geo.BuildLookup(source)); err != nil {
		return err
	}

	manifestPath := filepath.Join(opts.OutDir, "manifest.json")
	if err := writeJSONFile(manifestPath, geo.Manifest()); err != nil {
		return err
	}

	log.Info().Str("dir", opts.OutDir).Msg("Optimization complete")
	return nil
}

// resolveLevels parses the requested levels, defaulting to every level.
func resolveLevels(names []string) ([]geo.DetailLevel, error) {
	if len(names) == 0 {
		entries := geo.Manifest()
		levels := make([]geo.DetailLevel, 0, len(entries))
		for _, e := range entries {
			levels = append(levels, e.Level)
		}
		return levels, nil
	}

	levels := make([]geo.DetailLevel, 0, len(names))
	for _, name := range names {
		level, err := geo.ParseDetailLevel(name)
		if err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, nil
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
