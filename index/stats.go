package index

// LevelStats describes one layer of a graph index.
type LevelStats struct {
	Level          int
	Nodes          int
	Connections    int
	AvgConnections int
}

// Stats represents statistics about an index.
type Stats struct {
	Kind       Kind
	Dimension  int
	Live       int
	Tombstones int

	// Parameters holds implementation specific settings.
	Parameters map[string]string

	// Levels is only set by graph indexes.
	Levels []LevelStats
}

// TombstoneRatio returns tombstones / (live + tombstones).
func (s Stats) TombstoneRatio() float64 {
	total := s.Live + s.Tombstones
	if total == 0 {
		return 0
	}
	return float64(s.Tombstones) / float64(total)
}
