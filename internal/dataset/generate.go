package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"

	"callquality/internal/features"
)

// GenerateConfig shapes a synthetic export set.
type GenerateConfig struct {
	Dir          string
	Year         int
	Months       []string
	RowsPerMonth int
	Seed         int64
	// DropRate is the share of rows written with an empty state name.
	DropRate float64
}

type sampleState struct {
	name     string
	lat, lon float64
	offset   float64
}

var sampleStates = []sampleState{
	{"Maharashtra", 19.07, 72.87, 0.2},
	{"Karnataka", 12.97, 77.59, 0.3},
	{"Uttar Pradesh", 26.85, 80.95, -0.4},
	{"Kerala", 9.93, 76.26, 0.4},
	{"Rajasthan", 26.91, 75.79, -0.2},
	{"West Bengal", 22.57, 88.36, 0.0},
	{"Bihar", 25.59, 85.14, -0.5},
	{"Madhya Pradesh", 23.26, 77.41, -0.1},
	{"Uttarakhand", 30.32, 78.03, 0.1},
	{"Jharkhand", 23.34, 85.31, -0.3},
	{"Gujarat", 23.02, 72.57, 0.2},
	{"Tamil Nadu", 13.08, 80.27, 0.3},
	{"Odisha", 20.30, 85.82, -0.2},
}

var (
	qualityBase  = map[string]float64{"Satisfactory": 4.3, "Poor Voice Quality": 2.6, "Call Dropped": 1.6}
	networkBonus = map[string]float64{"2G": -0.4, "3G": -0.1, "4G": 0.2, "Unknown": 0}
	placeBonus   = map[string]float64{"Indoor": 0.1, "Outdoor": 0, "Travelling": -0.3}
)

// Generate writes one <Month>_MyCall_<Year>.csv per month and returns the
// written paths. Ratings are integers in [1,5] driven by call quality,
// network, place and state so a model has signal to learn.
func Generate(c GenerateConfig) ([]string, error) {
	if c.RowsPerMonth <= 0 {
		return nil, fmt.Errorf("rows per month must be positive, got %d", c.RowsPerMonth)
	}
	if len(c.Months) == 0 {
		c.Months = features.MonthNames
	}
	if c.Year == 0 {
		c.Year = 2023
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	rng := rand.New(rand.NewSource(c.Seed))
	paths := make([]string, 0, len(c.Months))
	for _, month := range c.Months {
		rows := make([]*csvRow, c.RowsPerMonth)
		for i := range rows {
			rows[i] = sampleRow(rng, c.DropRate)
		}

		path := filepath.Join(c.Dir, fmt.Sprintf("%s_MyCall_%d.csv", month, c.Year))
		if err := writeRows(path, rows); err != nil {
			return paths, err
		}
		paths = append(paths, path)
		log.Debug().Str("file", path).Int("rows", len(rows)).Msg("sample export written")
	}
	return paths, nil
}

func sampleRow(rng *rand.Rand, dropRate float64) *csvRow {
	// skew toward the first states so the top-state cut is meaningful
	st := sampleStates[int(math.Min(float64(len(sampleStates)-1), math.Abs(rng.NormFloat64())*4))]
	op := features.OperatorLabels[rng.Intn(len(features.OperatorLabels))]
	net := features.NetworkTypeLabels[rng.Intn(len(features.NetworkTypeLabels))]
	place := features.LocationContextLabels[rng.Intn(len(features.LocationContextLabels))]

	var quality string
	switch p := rng.Float64(); {
	case p < 0.6:
		quality = "Satisfactory"
	case p < 0.85:
		quality = "Poor Voice Quality"
	default:
		quality = "Call Dropped"
	}

	score := qualityBase[quality] + networkBonus[net] + placeBonus[place] + st.offset + rng.NormFloat64()*0.4
	rating := int(math.Round(math.Max(1, math.Min(5, score))))

	name := st.name
	if rng.Float64() < dropRate {
		name = ""
	}
	return &csvRow{
		Operator:         op,
		InoutTravelling:  place,
		NetworkType:      net,
		Rating:           strconv.Itoa(rating),
		CalldropCategory: quality,
		Latitude:         strconv.FormatFloat(st.lat+rng.NormFloat64()*0.5, 'f', 6, 64),
		Longitude:        strconv.FormatFloat(st.lon+rng.NormFloat64()*0.5, 'f', 6, 64),
		StateName:        name,
	}
}

func writeRows(path string, rows []*csvRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
