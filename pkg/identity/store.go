package identity

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/teslashibe/go-vigia/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists the identity database as a sqlite file.
// The live file is only ever replaced whole, by rename.
type Store struct {
	path string
}

// NewStore creates a store for the database file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the live database file path.
func (s *Store) Path() string { return s.path }

// Load reads the database. A missing file yields an empty database.
func (s *Store) Load(ctx context.Context) (*Database, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		log.Info("identity database not found, starting empty", "path", s.path)
		return NewDatabase(nil), nil
	}

	db, err := openDB(s.path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT name, year, original_path, embedding FROM records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var blob []byte
		if err := rows.Scan(&r.Name, &r.Year, &r.OriginalPath, &blob); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if r.Embedding, err = decodeEmbedding(blob); err != nil {
			return nil, fmt.Errorf("record %q: %w", r.OriginalPath, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return NewDatabase(records), nil
}

// Save writes every record of d to a temporary database in the same directory
// and renames it over the live file.
func (s *Store) Save(ctx context.Context, d *Database) (err error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp database: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if err := writeRecords(ctx, tmpPath, d.Records()); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	return nil
}

func writeRecords(ctx context.Context, path string, records []Record) (err error) {
	db, err := openDB(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close: %w", cerr)
		}
	}()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (name, year, original_path, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Name, r.Year, r.OriginalPath, encodeEmbedding(r.Embedding)); err != nil {
			return fmt.Errorf("insert %q: %w", r.OriginalPath, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// openDB opens a sqlite file and brings its schema up to date.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// m is not closed: that would close db.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// encodeEmbedding packs v as little-endian float32 values.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob of %d bytes is not a float32 vector", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
