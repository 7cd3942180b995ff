package sink

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/abihf/framecast/capture"
)

const manifestSchema = `
CREATE TABLE IF NOT EXISTS captures (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	filename        TEXT NOT NULL,
	flight_id       TEXT NOT NULL,
	field_id        TEXT NOT NULL,
	sequence_number INTEGER NOT NULL,
	width           INTEGER NOT NULL,
	height          INTEGER NOT NULL,
	saved_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS captures_pair ON captures (flight_id, field_id);
`

// Record is one saved capture as stored in the manifest.
type Record struct {
	capture.Saved
	SavedAt time.Time
}

// Manifest keeps a SQLite log of every capture that reached the output
// directory.
type Manifest struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

func OpenManifest(path string) (*Manifest, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "Can not create manifest directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "Can not open manifest")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "Can not apply %q", pragma)
		}
	}
	if _, err := db.Exec(manifestSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "Can not create manifest schema")
	}

	return &Manifest{db: db, path: path, now: time.Now}, nil
}

func (m *Manifest) Path() string { return m.path }

// Record appends saved captures in one transaction.
func (m *Manifest) Record(ctx context.Context, saved []capture.Saved) error {
	if len(saved) == 0 {
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "Can not begin manifest transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO captures
		(filename, flight_id, field_id, sequence_number, width, height, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "Can not prepare manifest insert")
	}
	defer stmt.Close()

	at := m.now().UnixMilli()
	for _, s := range saved {
		if _, err := stmt.ExecContext(ctx, s.Filename, s.FlightID, s.FieldID, s.SequenceNumber, s.Width, s.Height, at); err != nil {
			return errors.Wrapf(err, "Can not record %s", s.Filename)
		}
	}
	return errors.Wrap(tx.Commit(), "Can not commit manifest")
}

// List returns recorded captures, newest first. A limit <= 0 returns all.
func (m *Manifest) List(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT filename, flight_id, field_id, sequence_number, width, height, saved_at
		FROM captures ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "Can not query manifest")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r  Record
			ms int64
		)
		if err := rows.Scan(&r.Filename, &r.FlightID, &r.FieldID, &r.SequenceNumber, &r.Width, &r.Height, &ms); err != nil {
			return nil, errors.Wrap(err, "Can not read manifest row")
		}
		r.SavedAt = time.UnixMilli(ms)
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "Can not read manifest")
}

func (m *Manifest) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}
