package benchutil

// Shared constants for benchmarks across packages.

// BenchmarkSeed is the default seed for reproducible benchmark data generation.
const BenchmarkSeed = 42

// Standard benchmark sizes for quick runs.
var BenchmarkSizes = []int{1000, 10000}

// ScalingSizes are larger sizes for comprehensive scaling tests.
// Used with SPOOL_LONG_BENCH=1 environment variable.
var ScalingSizes = []int{100000, 500000}
