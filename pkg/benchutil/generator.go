// Package benchutil provides synthetic measurement data for benchmarks and testing.
package benchutil

import (
	"fmt"
	"math/rand"
	"strings"
)

// GeneratorConfig configures synthetic record generation.
type GeneratorConfig struct {
	// NumRecords is the total number of records to generate.
	NumRecords int
	// DataIDs are the record types to cycle through.
	DataIDs []string
	// ExtraFields is the number of generated numeric fields beyond the
	// fixed schema.
	ExtraFields int
	// MultiLineFraction is the share of records emitted as pretty-printed
	// JSON spanning several physical lines (0.0 to 1.0).
	MultiLineFraction float64
	// Seed for reproducible generation. 0 = use default seed.
	Seed int64
}

// DefaultConfig returns a reasonable default configuration.
func DefaultConfig(numRecords int) GeneratorConfig {
	return GeneratorConfig{
		NumRecords: numRecords,
		DataIDs: []string{
			"PROBE.EXP.PING",
			"PROBE.META.NODE.EVENT",
			"PROBE.META.DEVICE.GPS",
		},
		ExtraFields: 4,
		Seed:        BenchmarkSeed,
	}
}

// MultiLineConfig returns a config where a share of records span
// multiple physical lines, the parser's slow path.
func MultiLineConfig(numRecords int) GeneratorConfig {
	cfg := DefaultConfig(numRecords)
	cfg.MultiLineFraction = 0.1
	return cfg
}

// Generator generates synthetic measurement records.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// NewGenerator creates a new data generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = BenchmarkSeed
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GenerateLines returns one JSON record per element. Multi-line records
// occupy a single element containing embedded newlines.
func (g *Generator) GenerateLines() []string {
	lines := make([]string, g.cfg.NumRecords)
	for i := range lines {
		multiline := g.cfg.MultiLineFraction > 0 && g.rng.Float64() < g.cfg.MultiLineFraction
		lines[i] = g.generateRecord(i, multiline)
	}
	return lines
}

// GenerateFile returns the records joined into one newline-terminated
// file body, the shape a node uploads.
func (g *Generator) GenerateFile() []byte {
	return []byte(strings.Join(g.GenerateLines(), "\n") + "\n")
}

func (g *Generator) generateRecord(seq int, multiline bool) string {
	dataID := g.cfg.DataIDs[seq%len(g.cfg.DataIDs)]
	nodeID := 1 + g.rng.Intn(600)

	pairs := []string{
		fmt.Sprintf("%q: %q", "DataId", dataID),
		fmt.Sprintf("%q: %q", "NodeId", fmt.Sprintf("%d", nodeID)),
		fmt.Sprintf("%q: %d", "SequenceNumber", seq),
		fmt.Sprintf("%q: %.1f", "TimeStamp", 1700000000.0+float64(seq)),
		fmt.Sprintf("%q: %q", "Guid", fmt.Sprintf("sha256.n%d.s%d", nodeID, seq)),
		fmt.Sprintf("%q: %q", "Operator", []string{"OpA", "OpB", "OpC"}[g.rng.Intn(3)]),
		fmt.Sprintf("%q: %q", "Iccid", fmt.Sprintf("8946%016d", g.rng.Int63n(1e9))),
		fmt.Sprintf("%q: %.2f", "Rtt", 1.0+g.rng.Float64()*200),
		fmt.Sprintf("%q: %d", "Bytes", 84),
	}
	for f := 0; f < g.cfg.ExtraFields; f++ {
		pairs = append(pairs, fmt.Sprintf("%q: %d", fmt.Sprintf("Field%d", f), g.rng.Intn(10000)))
	}

	if multiline {
		return "{\n  " + strings.Join(pairs, ",\n  ") + "\n}"
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}
