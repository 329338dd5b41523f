package hnsw

import (
	"fmt"
	"strconv"

	"github.com/hupe1980/embeddb/index"
)

// Stats returns statistics about the HNSW graph.
func (h *HNSW) Stats() index.Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	g := h.g

	levelStats := make([]int, g.maxLevel+1)
	connectionStats := make([]int, g.maxLevel+1)
	connectionNodeStats := make([]int, g.maxLevel+1)

	for _, n := range g.nodes {
		levelStats[n.level]++

		// Loop through each connection
		for level := n.level; level >= 0; level-- {
			if total := len(n.connections[level]); total > 0 {
				connectionStats[level] += total
				connectionNodeStats[level]++
			}
		}
	}

	levels := make([]index.LevelStats, g.maxLevel+1)
	for i := range levels {
		avg := 0
		if connectionNodeStats[i] > 0 {
			avg = connectionStats[i] / connectionNodeStats[i]
		}
		levels[i] = index.LevelStats{
			Level:          i,
			Nodes:          levelStats[i],
			Connections:    connectionStats[i],
			AvgConnections: avg,
		}
	}

	tombstones := h.tombstones.Cardinality()

	return index.Stats{
		Kind:       index.KindHNSW,
		Dimension:  h.opts.Dimension,
		Live:       len(g.nodes) - tombstones,
		Tombstones: tombstones,
		Parameters: map[string]string{
			"Metric":         h.opts.Metric.String(),
			"M":              strconv.Itoa(h.mmax),
			"M0":             strconv.Itoa(h.mmax0),
			"EfConstruction": strconv.Itoa(h.opts.EfConstruction),
			"EfSearch":       strconv.Itoa(h.opts.EfSearch),
			"Heuristic":      strconv.FormatBool(h.opts.Heuristic),
		},
		Levels: levels,
	}
}

// String returns a string representation of the HNSW index.
func (h *HNSW) String() string {
	stats := h.Stats()
	return fmt.Sprintf("HNSW(M=%s, EF=%s, Count=%d, Deleted=%d, MaxLevel=%d)",
		stats.Parameters["M"], stats.Parameters["EfSearch"], stats.Live, stats.Tombstones, len(stats.Levels)-1)
}
