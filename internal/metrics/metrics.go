// Package metrics defines the prometheus counters loader stages report to.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	MetricCacheLookups    = "cache_lookups_total"
	MetricFolderScans     = "folder_scans_total"
	MetricFolderPaths     = "folder_paths_found_total"
	MetricBlocksExtracted = "blocks_extracted_total"
	MetricSourceReads     = "source_reads_total"
	MetricSourceBytes     = "source_read_bytes_total"

	namespace = "dataset"
)

// Cache lookup results.
const (
	Hit  = "hit"
	Miss = "miss"
)

// Metrics is the set of counters shared by every stage built from one
// registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	CacheLookups    *prometheus.CounterVec
	FolderScans     prometheus.Counter
	FolderPaths     prometheus.Counter
	BlocksExtracted *prometheus.CounterVec
	SourceReads     *prometheus.CounterVec
	SourceBytes     prometheus.Counter
}

// New creates the counters and registers them with reg. A nil reg leaves
// them unregistered, which is what tests that read counters directly want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      MetricCacheLookups,
				Help:      "Cache stage lookups by kind (count, data, metadata) and result (hit, miss).",
			},
			[]string{"kind", "result"},
		),
		FolderScans: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      MetricFolderScans,
				Help:      "Directory scans performed by folder stages.",
			},
		),
		FolderPaths: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      MetricFolderPaths,
				Help:      "Paths matched by folder stage scans.",
			},
		),
		BlocksExtracted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      MetricBlocksExtracted,
				Help:      "Blocks copied out of larger arrays, by stage.",
			},
			[]string{"loader"},
		),
		SourceReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      MetricSourceReads,
				Help:      "Arrays read from sources, by reader.",
			},
			[]string{"reader"},
		),
		SourceBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      MetricSourceBytes,
				Help:      "Bytes of array data read from sources.",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.CacheLookups, m.FolderScans, m.FolderPaths, m.BlocksExtracted, m.SourceReads, m.SourceBytes)
	}
	return m
}

// CacheLookup counts one cache lookup of kind with the given result.
func (m *Metrics) CacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := Miss
	if hit {
		result = Hit
	}
	m.CacheLookups.WithLabelValues(kind, result).Inc()
}

// FolderScan counts one directory scan that matched n paths.
func (m *Metrics) FolderScan(n int) {
	if m == nil {
		return
	}
	m.FolderScans.Inc()
	m.FolderPaths.Add(float64(n))
}

// BlockExtracted counts one block copied by the named stage.
func (m *Metrics) BlockExtracted(loader string) {
	if m == nil {
		return
	}
	m.BlocksExtracted.WithLabelValues(loader).Inc()
}

// SourceRead counts one array of size bytes read by the named reader.
func (m *Metrics) SourceRead(reader string, size int) {
	if m == nil {
		return
	}
	m.SourceReads.WithLabelValues(reader).Inc()
	m.SourceBytes.Add(float64(size))
}
