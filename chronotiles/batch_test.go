package chronotiles

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBatchDecode(t *testing.T) {
	archivePath := writeTestArchive(t)
	outDir := t.TempDir()

	rng := &TimeRange{Start: epochHours(10), End: epochHours(12)}
	err := BatchDecode(context.Background(), zap.NewNop(), archivePath, outDir, rng, "", 2)
	require.NoError(t, err)

	body, err := os.ReadFile(filepath.Join(outDir, "3/4/2.geojson"))
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(body)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 1)

	body, err = os.ReadFile(filepath.Join(outDir, "3/4/3.geojson"))
	require.NoError(t, err)
	fc, err = geojson.UnmarshalFeatureCollection(body)
	require.NoError(t, err)
	assert.Empty(t, fc.Features, "empty tile decodes to an empty collection")
}

func TestBatchDecodeMissingArchive(t *testing.T) {
	err := BatchDecode(context.Background(), zap.NewNop(), filepath.Join(t.TempDir(), "nope.ctiles"), t.TempDir(), nil, "", 1)
	assert.Error(t, err)
}
