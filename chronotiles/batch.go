package chronotiles

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type batchJob struct {
	coord    TileCoord
	envelope []byte
}

// BatchDecode decodes every tile of an archive into per-tile GeoJSON files
// under outDir (z/x/y.geojson). The archive connection is read by a single
// producer; decoding and writing fan out across workers. Any decode error
// aborts the whole run.
func BatchDecode(ctx context.Context, logger *zap.Logger, archivePath string, outDir string, rng *TimeRange, agg Aggregation, workers int) error {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	archive, err := OpenArchive(archivePath)
	if err != nil {
		return err
	}
	defer archive.Close()
	manifest := archive.Manifest()

	coords, err := archive.Tiles()
	if err != nil {
		return err
	}
	logger.Info("batch decode",
		zap.String("archive", archivePath),
		zap.Int("tiles", len(coords)),
		zap.Int("workers", workers))

	bar := progressbar.Default(int64(len(coords)))
	jobs := make(chan batchJob, workers)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for _, coord := range coords {
			envelope, err := archive.ReadTile(coord.Z, coord.X, coord.Y)
			if err != nil {
				return err
			}
			select {
			case jobs <- batchJob{coord: coord, envelope: envelope}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for job := range jobs {
				if err := decodeToFile(manifest, job, outDir, rng, agg); err != nil {
					return fmt.Errorf("tile %d/%d/%d: %w", job.coord.Z, job.coord.X, job.coord.Y, err)
				}
				bar.Add(1)
			}
			return nil
		})
	}
	return g.Wait()
}

func decodeToFile(manifest Manifest, job batchJob, outDir string, rng *TimeRange, agg Aggregation) error {
	payload, lengths, err := DeserializeEnvelope(job.envelope)
	if err != nil {
		return err
	}
	opts := manifest.DecodeOptionsForTile(job.coord.Z, job.coord.X, job.coord.Y, rng, agg)
	records, err := DecodeTile(payload, lengths, opts)
	if err != nil {
		return err
	}
	body, err := json.Marshal(FeatureCollection(records))
	if err != nil {
		return err
	}

	dir := filepath.Join(outDir, fmt.Sprintf("%d/%d", job.coord.Z, job.coord.X))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, fmt.Sprintf("%d.geojson", job.coord.Y)), body, 0o644)
}
