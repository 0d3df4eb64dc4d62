package chronotiles

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TileSource yields dataset manifests and tile envelopes by name. A
// missing dataset or tile reads as ErrNotFound.
type TileSource interface {
	Manifest(ctx context.Context, name string) (Manifest, error)
	Tile(ctx context.Context, name string, z uint8, x uint32, y uint32) ([]byte, error)
	Close() error
}

// BucketSource reads datasets laid out under a bucket prefix:
// <name>/metadata.json and <name>/<z>/<x>/<y>.cts envelopes.
type BucketSource struct {
	bucket Bucket
}

// NewBucketSource wraps a bucket as a TileSource.
func NewBucketSource(bucket Bucket) *BucketSource {
	return &BucketSource{bucket: bucket}
}

func (s *BucketSource) Manifest(ctx context.Context, name string) (Manifest, error) {
	data, err := readAll(ctx, s.bucket, name+"/metadata.json")
	if err != nil {
		return Manifest{}, err
	}
	return ParseManifest(data)
}

func (s *BucketSource) Tile(ctx context.Context, name string, z uint8, x uint32, y uint32) ([]byte, error) {
	return readAll(ctx, s.bucket, fmt.Sprintf("%s/%d/%d/%d.cts", name, z, x, y))
}

func (s *BucketSource) Close() error {
	return s.bucket.Close()
}

// ArchiveSource serves a single local archive under its manifest name.
// sqlite connections are not safe for concurrent use, so reads are
// serialized.
type ArchiveSource struct {
	mu      sync.Mutex
	archive *Archive
}

// NewArchiveSource wraps an open archive as a TileSource.
func NewArchiveSource(archive *Archive) *ArchiveSource {
	return &ArchiveSource{archive: archive}
}

func (s *ArchiveSource) Manifest(_ context.Context, name string) (Manifest, error) {
	m := s.archive.Manifest()
	if m.Name != "" && m.Name != name {
		return Manifest{}, fmt.Errorf("%w: dataset %s", ErrNotFound, name)
	}
	return m, nil
}

func (s *ArchiveSource) Tile(_ context.Context, name string, z uint8, x uint32, y uint32) ([]byte, error) {
	m := s.archive.Manifest()
	if m.Name != "" && m.Name != name {
		return nil, fmt.Errorf("%w: dataset %s", ErrNotFound, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archive.ReadTile(z, x, y)
}

func (s *ArchiveSource) Close() error {
	return s.archive.Close()
}

type cacheKey struct {
	name  string
	tile  bool // false caches the dataset manifest
	z     uint8
	x     uint32
	y     uint32
	query string
}

type request struct {
	key   cacheKey
	value chan cachedValue
}

type cachedValue struct {
	manifest Manifest
	body     []byte
	status   int
	ok       bool
}

type response struct {
	key   cacheKey
	value cachedValue
	size  int
	ok    bool
}

// Server decodes tiles from a TileSource on demand and caches decoded
// GeoJSON bodies and manifests in a size-bounded LRU owned by a single
// request loop goroutine.
type Server struct {
	reqs      chan request
	source    TileSource
	logger    *zap.Logger
	cacheSize int
	cors      string
}

// NewServer creates a Server; cacheSize is in megabytes.
func NewServer(source TileSource, logger *zap.Logger, cacheSize int, cors string) *Server {
	return &Server{
		reqs:      make(chan request, 8),
		source:    source,
		logger:    logger,
		cacheSize: cacheSize,
		cors:      cors,
	}
}

// Start launches the cache request loop.
func (server *Server) Start() {
	go func() {
		cache := make(map[cacheKey]*list.Element)
		inflight := make(map[cacheKey][]request)
		resps := make(chan response, 8)
		evictList := list.New()
		totalSize := 0
		ctx := context.Background()

		for {
			select {
			case req := <-server.reqs:
				key := req.key
				if val, ok := cache[key]; ok {
					evictList.MoveToFront(val)
					req.value <- val.Value.(*response).value
				} else if _, ok := inflight[key]; ok {
					inflight[key] = append(inflight[key], req)
				} else {
					inflight[key] = []request{req}
					go func() {
						resps <- server.fetch(ctx, key)
					}()
				}
			case resp := <-resps:
				for _, v := range inflight[resp.key] {
					v.value <- resp.value
				}
				delete(inflight, resp.key)

				if resp.ok {
					totalSize += resp.size
					ent := &resp
					cache[resp.key] = evictList.PushFront(ent)

					for totalSize > server.cacheSize*1000*1000 {
						last := evictList.Back()
						if last == nil {
							break
						}
						evictList.Remove(last)
						kv := last.Value.(*response)
						delete(cache, kv.key)
						totalSize -= kv.size
					}
					cacheSizeMetric.Set(float64(len(cache)))
				}
			}
		}
	}()
}

func (server *Server) fetch(ctx context.Context, key cacheKey) response {
	if !key.tile {
		manifest, err := server.source.Manifest(ctx, key.name)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				server.logger.Error("manifest fetch failed", zap.String("name", key.name), zap.Error(err))
			}
			return response{key: key, value: cachedValue{ok: false}}
		}
		return response{key: key, value: cachedValue{manifest: manifest, ok: true}, size: 256, ok: true}
	}

	value := server.decodeTile(ctx, key)
	return response{key: key, value: value, size: len(value.body) + 64, ok: value.ok}
}

// decodeTile runs the whole decode for one tile: envelope fetch, sublayer
// split, assembly and GeoJSON encoding.
func (server *Server) decodeTile(ctx context.Context, key cacheKey) cachedValue {
	manifest, err := server.source.Manifest(ctx, key.name)
	if err != nil {
		return cachedValue{status: 404}
	}

	rng, agg, err := parseTileQuery(key.query)
	if err != nil {
		return cachedValue{status: 400}
	}

	start := time.Now()
	envelope, err := server.source.Tile(ctx, key.name, key.z, key.x, key.y)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return cachedValue{status: 204}
		}
		server.logger.Error("tile fetch failed", zap.String("name", key.name), zap.Error(err))
		return cachedValue{status: 500}
	}

	payload, lengths, err := DeserializeEnvelope(envelope)
	if err != nil {
		server.logger.Error("bad tile envelope", zap.String("name", key.name), zap.Error(err))
		return cachedValue{status: 500}
	}

	opts := manifest.DecodeOptionsForTile(key.z, key.x, key.y, rng, agg)
	records, err := DecodeTile(payload, lengths, opts)
	if err != nil {
		server.logger.Error("tile decode failed",
			zap.String("name", key.name),
			zap.Uint8("z", key.z), zap.Uint32("x", key.x), zap.Uint32("y", key.y),
			zap.Error(err))
		return cachedValue{status: 500}
	}

	body, err := json.Marshal(FeatureCollection(records))
	if err != nil {
		return cachedValue{status: 500}
	}
	decodeDuration.Observe(time.Since(start).Seconds())

	return cachedValue{body: body, status: 200, ok: true}
}

var tilePattern = regexp.MustCompile(`^\/([-A-Za-z0-9_\/!-_\.\*'\(\)']+)\/(\d+)\/(\d+)\/(\d+)\.geojson$`)
var metadataPattern = regexp.MustCompile(`^\/([-A-Za-z0-9_\/!-_\.\*'\(\)']+)\/metadata$`)

func parseTilePath(path string) (bool, string, uint8, uint32, uint32) {
	if res := tilePattern.FindStringSubmatch(path); res != nil {
		name := res[1]
		z, _ := strconv.ParseUint(res[2], 10, 8)
		x, _ := strconv.ParseUint(res[3], 10, 32)
		y, _ := strconv.ParseUint(res[4], 10, 32)
		return true, name, uint8(z), uint32(x), uint32(y)
	}
	return false, "", 0, 0, 0
}

func parseMetadataPath(path string) (bool, string) {
	if res := metadataPattern.FindStringSubmatch(path); res != nil {
		return true, res[1]
	}
	return false, ""
}

// canonicalTileQuery reduces the query to the parameters that change the
// decode result, so cache keys do not fragment.
func canonicalTileQuery(query url.Values) string {
	v := url.Values{}
	if s := query.Get("start"); s != "" {
		v.Set("start", s)
	}
	if e := query.Get("end"); e != "" {
		v.Set("end", e)
	}
	if agg := query.Get("agg"); agg != "" {
		v.Set("agg", agg)
	}
	return v.Encode()
}

func parseTileQuery(query string) (*TimeRange, Aggregation, error) {
	v, err := url.ParseQuery(query)
	if err != nil {
		return nil, "", err
	}
	var agg Aggregation
	switch v.Get("agg") {
	case "":
	case string(SumAggregation):
		agg = SumAggregation
	case string(AverageAggregation):
		agg = AverageAggregation
	default:
		return nil, "", fmt.Errorf("unknown agg %q", v.Get("agg"))
	}

	startStr, endStr := v.Get("start"), v.Get("end")
	if startStr == "" || endStr == "" {
		// No window requested: the decode is defined to yield no features.
		return nil, agg, nil
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return nil, "", err
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return nil, "", err
	}
	return &TimeRange{Start: start, End: end}, agg, nil
}

func (server *Server) getManifest(name string) (Manifest, bool) {
	req := request{key: cacheKey{name: name}, value: make(chan cachedValue, 1)}
	server.reqs <- req
	value := <-req.value
	return value.manifest, value.ok
}

func (server *Server) getTile(httpHeaders map[string]string, name string, z uint8, x uint32, y uint32, query string) (int, map[string]string, []byte) {
	manifest, ok := server.getManifest(name)
	if !ok {
		return 404, httpHeaders, []byte("Dataset not found")
	}
	if z < manifest.MinZoom || z > manifest.MaxZoom {
		return 404, httpHeaders, []byte("Tile not found")
	}

	req := request{key: cacheKey{name: name, tile: true, z: z, x: x, y: y, query: query}, value: make(chan cachedValue, 1)}
	server.reqs <- req
	value := <-req.value

	switch value.status {
	case 200:
		httpHeaders["Content-Type"] = "application/geo+json"
		return 200, httpHeaders, value.body
	case 204:
		return 204, httpHeaders, nil
	case 400:
		return 400, httpHeaders, []byte("Bad request")
	case 404:
		return 404, httpHeaders, []byte("Dataset not found")
	default:
		return 500, httpHeaders, []byte("Decode error")
	}
}

func (server *Server) getMetadata(httpHeaders map[string]string, name string) (int, map[string]string, []byte) {
	manifest, ok := server.getManifest(name)
	if !ok {
		return 404, httpHeaders, []byte("Dataset not found")
	}
	body, err := json.Marshal(manifest)
	if err != nil {
		return 500, httpHeaders, []byte("Metadata error")
	}
	httpHeaders["Content-Type"] = "application/json"
	return 200, httpHeaders, body
}

// Get handles a request path plus query and returns status, headers and
// body.
func (server *Server) Get(_ context.Context, path string, query url.Values) (int, map[string]string, []byte) {
	httpHeaders := make(map[string]string)
	if len(server.cors) > 0 {
		httpHeaders["Access-Control-Allow-Origin"] = server.cors
	}

	var status int
	var body []byte
	if ok, name, z, x, y := parseTilePath(path); ok {
		status, httpHeaders, body = server.getTile(httpHeaders, name, z, x, y, canonicalTileQuery(query))
	} else if ok, name := parseMetadataPath(path); ok {
		status, httpHeaders, body = server.getMetadata(httpHeaders, name)
	} else if path == "/" {
		status, body = 204, []byte{}
	} else {
		status, body = 404, []byte("Path not found")
	}

	requestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	return status, httpHeaders, body
}
