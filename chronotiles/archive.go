package chronotiles

import (
	"encoding/json"
	"fmt"

	"zombiezen.com/go/sqlite"
)

// Archive is a read-only single-file sqlite tile archive: a metadata table
// holding the dataset manifest and a tiles table of envelope blobs.
type Archive struct {
	conn     *sqlite.Conn
	manifest Manifest
}

// TileCoord addresses one tile in an archive.
type TileCoord struct {
	Z uint8
	X uint32
	Y uint32
}

// OpenArchive opens an archive and reads its manifest.
func OpenArchive(path string) (*Archive, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	if err != nil {
		return nil, err
	}

	stmt, _, err := conn.PrepareTransient("SELECT value FROM metadata WHERE name = 'manifest'")
	if err != nil {
		conn.Close()
		return nil, err
	}
	row, err := stmt.Step()
	if err != nil {
		stmt.Finalize()
		conn.Close()
		return nil, err
	}
	if !row {
		stmt.Finalize()
		conn.Close()
		return nil, fmt.Errorf("%w: archive has no manifest row", ErrInvalidConfig)
	}
	manifest, err := ParseManifest([]byte(stmt.ColumnText(0)))
	stmt.Finalize()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Archive{conn: conn, manifest: manifest}, nil
}

func (a *Archive) Manifest() Manifest {
	return a.manifest
}

// ReadTile returns the envelope bytes for one tile, or ErrNotFound.
func (a *Archive) ReadTile(z uint8, x uint32, y uint32) ([]byte, error) {
	stmt, _, err := a.conn.PrepareTransient("SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?")
	if err != nil {
		return nil, err
	}
	defer stmt.Finalize()
	stmt.BindInt64(1, int64(z))
	stmt.BindInt64(2, int64(x))
	stmt.BindInt64(3, int64(y))

	row, err := stmt.Step()
	if err != nil {
		return nil, err
	}
	if !row {
		return nil, fmt.Errorf("%w: tile %d/%d/%d", ErrNotFound, z, x, y)
	}
	data := make([]byte, stmt.ColumnLen(0))
	stmt.ColumnBytes(0, data)
	return data, nil
}

// Tiles lists every tile coordinate in the archive.
func (a *Archive) Tiles() ([]TileCoord, error) {
	stmt, _, err := a.conn.PrepareTransient("SELECT zoom_level, tile_column, tile_row FROM tiles ORDER BY zoom_level, tile_column, tile_row")
	if err != nil {
		return nil, err
	}
	defer stmt.Finalize()

	coords := make([]TileCoord, 0)
	for {
		row, err := stmt.Step()
		if err != nil {
			return nil, err
		}
		if !row {
			break
		}
		coords = append(coords, TileCoord{
			Z: uint8(stmt.ColumnInt64(0)),
			X: uint32(stmt.ColumnInt64(1)),
			Y: uint32(stmt.ColumnInt64(2)),
		})
	}
	return coords, nil
}

func (a *Archive) Close() error {
	return a.conn.Close()
}

// ArchiveWriter creates a new tile archive.
type ArchiveWriter struct {
	conn *sqlite.Conn
}

// CreateArchive creates the archive file, its schema and manifest row.
func CreateArchive(path string, m Manifest) (*ArchiveWriter, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate|sqlite.OpenReadWrite)
	if err != nil {
		return nil, err
	}
	w := &ArchiveWriter{conn: conn}

	ddl := []string{
		"CREATE TABLE metadata (name TEXT PRIMARY KEY, value TEXT)",
		"CREATE TABLE tiles (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB)",
		"CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row)",
	}
	for _, sql := range ddl {
		if err := w.exec(sql); err != nil {
			conn.Close()
			return nil, err
		}
	}

	manifestJSON, err := json.Marshal(m)
	if err != nil {
		conn.Close()
		return nil, err
	}
	stmt, _, err := conn.PrepareTransient("INSERT INTO metadata (name, value) VALUES ('manifest', ?)")
	if err != nil {
		conn.Close()
		return nil, err
	}
	stmt.BindText(1, string(manifestJSON))
	_, err = stmt.Step()
	stmt.Finalize()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return w, nil
}

// WriteTile stores one envelope blob.
func (w *ArchiveWriter) WriteTile(z uint8, x uint32, y uint32, envelope []byte) error {
	stmt, _, err := w.conn.PrepareTransient("INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Finalize()
	stmt.BindInt64(1, int64(z))
	stmt.BindInt64(2, int64(x))
	stmt.BindInt64(3, int64(y))
	stmt.BindBytes(4, envelope)
	_, err = stmt.Step()
	return err
}

func (w *ArchiveWriter) Close() error {
	return w.conn.Close()
}

func (w *ArchiveWriter) exec(sql string) error {
	stmt, _, err := w.conn.PrepareTransient(sql)
	if err != nil {
		return err
	}
	defer stmt.Finalize()
	_, err = stmt.Step()
	return err
}
