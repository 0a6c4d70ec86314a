package dataset

import "callquality/internal/features"

// Row is one cleaned observation: the encoder input and the user rating.
type Row struct {
	Record features.CallRecord
	Rating float64
}

// FileStats describes one loaded export.
type FileStats struct {
	File    string `json:"file"`
	Month   string `json:"month"`
	RawRows int    `json:"raw_rows"`
	Rows    int    `json:"rows"`
}

// Stats summarizes what cleaning did to the raw exports.
type Stats struct {
	Files        []FileStats `json:"files"`
	SkippedFiles []string    `json:"skipped_files,omitempty"`
	RawRows      int         `json:"raw_rows"`
	Duplicates   int         `json:"duplicates_removed"`
	Filtered     int         `json:"rows_without_state"`
	Invalid      int         `json:"invalid_rows"`
}

// Corpus is the cleaned training set.
type Corpus struct {
	Rows  []Row
	stats Stats
}

// NewCorpus wraps rows that were built in memory.
func NewCorpus(rows []Row) *Corpus {
	return &Corpus{Rows: rows, stats: Stats{RawRows: len(rows)}}
}

func (c *Corpus) Len() int { return len(c.Rows) }

func (c *Corpus) Stats() Stats { return c.stats }

// Records returns the call records in row order.
func (c *Corpus) Records() []features.CallRecord {
	out := make([]features.CallRecord, len(c.Rows))
	for i, r := range c.Rows {
		out[i] = r.Record
	}
	return out
}

// Ratings returns the targets in row order.
func (c *Corpus) Ratings() []float64 {
	out := make([]float64, len(c.Rows))
	for i, r := range c.Rows {
		out[i] = r.Rating
	}
	return out
}

// StateCounts tallies state names in first-appearance order.
func (c *Corpus) StateCounts() []features.StateCount {
	states := make([]string, len(c.Rows))
	for i, r := range c.Rows {
		states[i] = r.Record.StateName
	}
	return features.CountStates(states)
}

// Subset returns a corpus holding the rows at idx.
func (c *Corpus) Subset(idx []int) *Corpus {
	rows := make([]Row, len(idx))
	for i, j := range idx {
		rows[i] = c.Rows[j]
	}
	return &Corpus{Rows: rows}
}
