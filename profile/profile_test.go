package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, yamlBody string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0644))
	return path
}

func TestLoad_ParsesMessageFieldWeights(t *testing.T) {
	path := writeProfile(t, `
messages:
  pkg.Msg:
    fields:
      7: 0.91
      3: 0.40
`)
	p, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 0.91, p.weightOf("pkg.Msg", 7))
	require.Equal(t, 0.40, p.weightOf("pkg.Msg", 3))
	require.Equal(t, float64(0), p.weightOf("pkg.Msg", 99))
	require.Equal(t, float64(0), p.weightOf("pkg.Other", 7))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestHotness_NilProfileFallsBackToAscendingNumber(t *testing.T) {
	var p *Profile
	less := p.Hotness("pkg.Msg")
	require.True(t, less(false, false, 1, 2))
	require.False(t, less(false, false, 2, 1))
}

func TestHotness_RequiredAlwaysWinsRegardlessOfWeight(t *testing.T) {
	path := writeProfile(t, `
messages:
  pkg.Msg:
    fields:
      2: 1000
`)
	p, err := Load(path)
	require.NoError(t, err)
	less := p.Hotness("pkg.Msg")

	require.True(t, less(true, false, 1, 2))
	require.False(t, less(false, true, 2, 1))
}

func TestHotness_TiesBreakByWeightThenNumber(t *testing.T) {
	path := writeProfile(t, `
messages:
  pkg.Msg:
    fields:
      1: 0.10
      2: 0.50
`)
	p, err := Load(path)
	require.NoError(t, err)
	less := p.Hotness("pkg.Msg")

	require.True(t, less(false, false, 2, 1), "field 2 has higher weight than field 1")
	require.False(t, less(false, false, 3, 1), "field 3 has no profile entry (weight 0) vs field 1's 0.10")
	require.True(t, less(false, false, 1, 3), "field 1's weight beats field 3's absent entry")
}

func TestHotness_UnrelatedMessageIgnoresProfile(t *testing.T) {
	path := writeProfile(t, `
messages:
  pkg.Other:
    fields:
      1: 5
`)
	p, err := Load(path)
	require.NoError(t, err)
	less := p.Hotness("pkg.Msg")
	require.True(t, less(false, false, 1, 2))
	require.False(t, less(false, false, 2, 1))
}
