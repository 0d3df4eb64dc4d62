package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/chronotiles/go-chronotiles/chronotiles"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var cli struct {
	Decode struct {
		Archive string `arg:"" help:"Input tile archive." type:"existingfile"`
		Z       uint8  `arg:""`
		X       uint32 `arg:""`
		Y       uint32 `arg:""`
		Start   string `help:"Aggregation window start (RFC3339)."`
		End     string `help:"Aggregation window end (RFC3339)."`
		Agg     string `help:"Aggregation operation: sum or avg."`
		Out     string `help:"Output file; stdout when omitted." type:"path"`
	} `cmd:"" help:"Decode one tile from an archive and output GeoJSON."`

	Show struct {
		Archive string `arg:"" help:"Input tile archive." type:"existingfile"`
		Z       int    `default:"-1" help:"Tile zoom; show per-tile payload stats when z/x/y given."`
		X       uint32 `default:"0"`
		Y       uint32 `default:"0"`
	} `cmd:"" help:"Inspect an archive's manifest, or one tile's payload."`

	Serve struct {
		Path      string `arg:"" help:"Local archive file, local directory, or bucket prefix."`
		Bucket    string `help:"Remote bucket"`
		Port      int    `default:"8080"`
		Cors      string `help:"Comma-separated list of allowed HTTP CORS origins."`
		CacheSize int    `default:"64" help:"Size of decoded-tile cache in megabytes."`
	} `cmd:"" help:"Run an HTTP server decoding Z/X/Y tiles to GeoJSON."`

	Batch struct {
		Archive string `arg:"" help:"Input tile archive." type:"existingfile"`
		Out     string `arg:"" help:"Output directory for GeoJSON files." type:"path"`
		Start   string `help:"Aggregation window start (RFC3339)."`
		End     string `help:"Aggregation window end (RFC3339)."`
		Agg     string `help:"Aggregation operation: sum or avg."`
		Workers int    `default:"0" help:"Decode workers; 0 means GOMAXPROCS."`
	} `cmd:"" help:"Decode every tile of an archive to GeoJSON files."`

	Version struct {
	} `cmd:"" help:"Show the program version."`
}

func parseRange(start string, end string) (*chronotiles.TimeRange, error) {
	if start == "" || end == "" {
		return nil, nil
	}
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return nil, fmt.Errorf("bad --start: %w", err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return nil, fmt.Errorf("bad --end: %w", err)
	}
	return &chronotiles.TimeRange{Start: s, End: e}, nil
}

func main() {
	if len(os.Args) < 2 {
		os.Args = append(os.Args, "--help")
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()
	ctx := context.Background()
	kctx := kong.Parse(&cli)

	switch kctx.Command() {
	case "decode <archive> <z> <x> <y>":
		rng, err := parseRange(cli.Decode.Start, cli.Decode.End)
		if err != nil {
			logger.Fatal("bad time range", zap.Error(err))
		}
		if err := runDecode(rng); err != nil {
			logger.Fatal("failed to decode tile", zap.Error(err))
		}
	case "show <archive>":
		if err := runShow(); err != nil {
			logger.Fatal("failed to show archive", zap.Error(err))
		}
	case "serve <path>":
		if err := runServe(ctx, logger); err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	case "batch <archive> <out>":
		rng, err := parseRange(cli.Batch.Start, cli.Batch.End)
		if err != nil {
			logger.Fatal("bad time range", zap.Error(err))
		}
		err = chronotiles.BatchDecode(ctx, logger, cli.Batch.Archive, cli.Batch.Out, rng,
			chronotiles.Aggregation(cli.Batch.Agg), cli.Batch.Workers)
		if err != nil {
			logger.Fatal("batch decode failed", zap.Error(err))
		}
	case "version":
		fmt.Printf("chronotiles %s, commit %s, built at %s\n", version, commit, date)
	}
}

func runDecode(rng *chronotiles.TimeRange) error {
	archive, err := chronotiles.OpenArchive(cli.Decode.Archive)
	if err != nil {
		return err
	}
	defer archive.Close()

	envelope, err := archive.ReadTile(cli.Decode.Z, cli.Decode.X, cli.Decode.Y)
	if err != nil {
		return err
	}
	payload, lengths, err := chronotiles.DeserializeEnvelope(envelope)
	if err != nil {
		return err
	}
	opts := archive.Manifest().DecodeOptionsForTile(cli.Decode.Z, cli.Decode.X, cli.Decode.Y, rng,
		chronotiles.Aggregation(cli.Decode.Agg))
	records, err := chronotiles.DecodeTile(payload, lengths, opts)
	if err != nil {
		return err
	}
	body, err := chronotiles.FeatureCollection(records).MarshalJSON()
	if err != nil {
		return err
	}
	if cli.Decode.Out == "" {
		_, err = os.Stdout.Write(body)
		return err
	}
	return os.WriteFile(cli.Decode.Out, body, 0o644)
}

func runShow() error {
	archive, err := chronotiles.OpenArchive(cli.Show.Archive)
	if err != nil {
		return err
	}
	defer archive.Close()
	manifest := archive.Manifest()

	fmt.Printf("dataset: %s\n", manifest.Name)
	fmt.Printf("interval: %s, bands per frame: %d\n", manifest.Interval, manifest.BandsPerFrame)
	fmt.Printf("grid: %dx%d, zoom: %d-%d\n", manifest.Cols, manifest.Rows, manifest.MinZoom, manifest.MaxZoom)
	fmt.Printf("buffered start: %s\n", manifest.BufferedStart.Format(time.RFC3339))

	if cli.Show.Z < 0 {
		return nil
	}
	envelope, err := archive.ReadTile(uint8(cli.Show.Z), cli.Show.X, cli.Show.Y)
	if err != nil {
		return err
	}
	payload, lengths, err := chronotiles.DeserializeEnvelope(envelope)
	if err != nil {
		return err
	}
	stats, err := chronotiles.CollectStats(payload, lengths, manifest.BandsPerFrame)
	if err != nil {
		return err
	}
	fmt.Print(stats.String())
	return nil
}

func runServe(ctx context.Context, logger *zap.Logger) error {
	var source chronotiles.TileSource
	if info, err := os.Stat(cli.Serve.Path); cli.Serve.Bucket == "" && err == nil && !info.IsDir() {
		archive, err := chronotiles.OpenArchive(cli.Serve.Path)
		if err != nil {
			return err
		}
		source = chronotiles.NewArchiveSource(archive)
	} else {
		bucketURL, prefix := cli.Serve.Bucket, cli.Serve.Path
		if bucketURL == "" {
			// Bare local directory: the normalized url carries the path.
			normalized, _, err := chronotiles.NormalizeBucketKey("", cli.Serve.Path, "")
			if err != nil {
				return err
			}
			bucketURL, prefix = normalized, ""
		}
		bucket, err := chronotiles.OpenBucket(ctx, bucketURL, prefix)
		if err != nil {
			return err
		}
		source = chronotiles.NewBucketSource(bucket)
	}
	defer source.Close()

	server := chronotiles.NewServer(source, logger, cli.Serve.CacheSize, cli.Serve.Cors)
	server.Start()
	chronotiles.SetBuildInfo(version, commit, date)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		statusCode, headers, body := server.Get(r.Context(), r.URL.Path, r.URL.Query())
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(statusCode)
		w.Write(body)
		logger.Info("response",
			zap.Int("status", statusCode),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})

	var handler http.Handler = mux
	if cli.Serve.Cors != "" {
		handler = cors.New(cors.Options{
			AllowedOrigins: strings.Split(cli.Serve.Cors, ","),
		}).Handler(mux)
	}

	logger.Info("serving tiles", zap.Int("port", cli.Serve.Port))
	return http.ListenAndServe(fmt.Sprintf(":%d", cli.Serve.Port), handler)
}
