// Package dataset loads the monthly call-quality survey exports into a
// cleaned corpus of typed call records and ratings.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"

	"callquality/internal/common"
	"callquality/internal/features"
)

// DefaultPattern matches the monthly export naming, e.g. March_MyCall_2023.csv.
const DefaultPattern = common.DefaultFilePattern

// ErrNoData is returned when no usable row survives loading and cleaning.
var ErrNoData = errors.New("no usable rows loaded")

// csvRow mirrors one line of an export. Everything is read as text so a bad
// number drops the row instead of failing the whole file.
type csvRow struct {
	Operator         string `csv:"operator"`
	InoutTravelling  string `csv:"inout_travelling"`
	NetworkType      string `csv:"network_type"`
	Rating           string `csv:"rating"`
	CalldropCategory string `csv:"calldrop_category"`
	Latitude         string `csv:"latitude"`
	Longitude        string `csv:"longitude"`
	StateName        string `csv:"state_name"`
}

// key identifies a row for deduplication. Numbers are compared by value, so
// 12.97 and 12.970 collapse; text that does not parse is kept as written.
func (r csvRow) key(month string) string {
	return strings.Join([]string{
		r.Operator, r.InoutTravelling, r.NetworkType, numericKey(r.Rating), r.CalldropCategory,
		numericKey(r.Latitude), numericKey(r.Longitude), r.StateName, month,
	}, "\x1f")
}

func numericKey(s string) string {
	v, err := parseFloat(s)
	if err != nil {
		return s
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// MonthFromFilename returns the text before the first underscore of the base name.
func MonthFromFilename(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "_"); i >= 0 {
		return base[:i]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load reads every file in dir matching pattern. Files are processed in
// calendar order of their month prefix, then by name.
func Load(dir, pattern string) (*Corpus, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid file pattern %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files matching %s in %s: %w", pattern, dir, ErrNoData)
	}

	sort.Slice(paths, func(i, j int) bool {
		mi := features.ParseMonth(MonthFromFilename(paths[i]))
		mj := features.ParseMonth(MonthFromFilename(paths[j]))
		if mi != mj {
			return mi < mj
		}
		return paths[i] < paths[j]
	})
	return LoadFiles(paths)
}

// LoadFiles reads the given exports in order. Missing or unreadable files are
// skipped with a warning; rows are cleaned as they are read.
func LoadFiles(paths []string) (*Corpus, error) {
	c := &Corpus{}
	seen := make(map[string]struct{})

	for _, path := range paths {
		month := MonthFromFilename(path)
		if features.ParseMonth(month) == 0 {
			log.Warn().Str("file", path).Str("prefix", month).Msg("file name does not start with a month, skipping")
			c.stats.SkippedFiles = append(c.stats.SkippedFiles, path)
			continue
		}

		rows, err := readFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("skipping unreadable file")
			c.stats.SkippedFiles = append(c.stats.SkippedFiles, path)
			continue
		}

		fs := FileStats{File: filepath.Base(path), Month: month, RawRows: len(rows)}
		for _, raw := range rows {
			c.stats.RawRows++

			k := raw.key(month)
			if _, dup := seen[k]; dup {
				c.stats.Duplicates++
				continue
			}
			seen[k] = struct{}{}

			// a positive latitude alone is not enough, the state slot needs a name
			if raw.StateName == "" {
				c.stats.Filtered++
				continue
			}

			row, err := toRow(raw, month)
			if err != nil {
				c.stats.Invalid++
				log.Debug().Err(err).Str("file", path).Msg("dropping invalid row")
				continue
			}
			c.Rows = append(c.Rows, row)
			fs.Rows++
		}
		c.stats.Files = append(c.stats.Files, fs)

		log.Info().
			Str("file", fs.File).
			Str("month", month).
			Int("raw_rows", fs.RawRows).
			Int("kept_rows", fs.Rows).
			Msg("loaded export")
	}

	if len(c.Rows) == 0 {
		return nil, ErrNoData
	}

	log.Info().
		Int("files", len(c.stats.Files)).
		Int("rows", len(c.Rows)).
		Int("duplicates", c.stats.Duplicates).
		Int("filtered", c.stats.Filtered).
		Int("invalid", c.stats.Invalid).
		Msg("corpus loaded")

	return c, nil
}

func readFile(path string) ([]csvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []csvRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return rows, nil
}

func toRow(raw csvRow, month string) (Row, error) {
	rating, err := parseFloat(raw.Rating)
	if err != nil {
		return Row{}, fmt.Errorf("rating: %w", err)
	}
	lat, err := parseFloat(raw.Latitude)
	if err != nil {
		return Row{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := parseFloat(raw.Longitude)
	if err != nil {
		return Row{}, fmt.Errorf("longitude: %w", err)
	}
	rec := features.NewCallRecord(raw.Operator, raw.NetworkType, raw.InoutTravelling,
		raw.CalldropCategory, lat, lon, raw.StateName, month)
	return Row{Record: rec, Rating: rating}, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}
