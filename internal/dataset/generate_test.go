package dataset

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_RoundTripsThroughLoad(t *testing.T) {
	dir := t.TempDir()
	paths, err := Generate(GenerateConfig{
		Dir:          dir,
		Months:       []string{"April", "March"},
		RowsPerMonth: 200,
		Seed:         7,
		DropRate:     0.1,
	})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "April_MyCall_2023.csv"), paths[0])

	corpus, err := Load(dir, "")
	require.NoError(t, err)

	stats := corpus.Stats()
	assert.Len(t, stats.Files, 2)
	assert.Equal(t, "March", stats.Files[0].Month)
	assert.Equal(t, 400, stats.RawRows)
	assert.Greater(t, stats.Filtered, 0)
	assert.Zero(t, stats.Invalid)
	assert.Equal(t, stats.RawRows-stats.Duplicates-stats.Filtered, corpus.Len())

	for _, r := range corpus.Ratings() {
		assert.GreaterOrEqual(t, r, 1.0)
		assert.LessOrEqual(t, r, 5.0)
		assert.Equal(t, float64(int(r)), r)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	cfg := GenerateConfig{Months: []string{"May"}, RowsPerMonth: 50, Seed: 3}

	cfg.Dir = a
	_, err := Generate(cfg)
	require.NoError(t, err)
	cfg.Dir = b
	_, err = Generate(cfg)
	require.NoError(t, err)

	ca, err := Load(a, "")
	require.NoError(t, err)
	cb, err := Load(b, "")
	require.NoError(t, err)
	assert.Equal(t, ca.Ratings(), cb.Ratings())
	assert.Equal(t, ca.Records(), cb.Records())
}

func TestGenerate_RejectsEmpty(t *testing.T) {
	_, err := Generate(GenerateConfig{Dir: t.TempDir()})
	assert.Error(t, err)
}
