package dashboard

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return errors.Wrapf(err, "open %s", s.path)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return errors.Wrapf(err, "ping %s", s.path)
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return errors.Wrap(err, "create tables")
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run RunInfo) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, gan_type, mode, seed, started_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			gan_type = excluded.gan_type,
			mode = excluded.mode,
			seed = excluded.seed,
			started_at = excluded.started_at
	`, run.ID, run.GANType, run.Mode, run.Seed, run.StartedAt.UTC().Format(time.RFC3339Nano))
	return errors.Wrapf(err, "save run %s", run.ID)
}

func (s *SQLiteStore) AppendRound(ctx context.Context, rec RoundRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	hist, err := json.Marshal(histogramPayload{Counts: rec.Histogram, Edges: rec.Edges})
	if err != nil {
		return errors.Wrap(err, "encode histogram")
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO rounds (run_id, round, mode, d_loss, g_loss, generation, accepted, sample_mean, sample_std, non_finite, histogram)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.Round, rec.Mode, nullable(rec.DiscriminatorLoss), nullable(rec.GeneratorLoss),
		rec.Generation, rec.Accepted, nullable(rec.SampleMean), nullable(rec.SampleStd), rec.NonFinite, hist)
	return errors.Wrapf(err, "append round %d of %s", rec.Round, rec.RunID)
}

func (s *SQLiteStore) Rounds(ctx context.Context, runID string) ([]RoundRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT round, mode, d_loss, g_loss, generation, accepted, sample_mean, sample_std, non_finite, histogram
		FROM rounds WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "query rounds of %s", runID)
	}
	defer rows.Close()

	var out []RoundRecord
	for rows.Next() {
		rec := RoundRecord{RunID: runID}
		var hist []byte
		var dLoss, gLoss, mean, std sql.NullFloat64
		if err := rows.Scan(&rec.Round, &rec.Mode, &dLoss, &gLoss,
			&rec.Generation, &rec.Accepted, &mean, &std, &rec.NonFinite, &hist); err != nil {
			return nil, errors.Wrap(err, "scan round")
		}
		rec.DiscriminatorLoss, rec.GeneratorLoss = fromNullable(dLoss), fromNullable(gLoss)
		rec.SampleMean, rec.SampleStd = fromNullable(mean), fromNullable(std)
		var p histogramPayload
		if err := json.Unmarshal(hist, &p); err != nil {
			return nil, errors.Wrapf(err, "decode histogram of round %d", rec.Round)
		}
		rec.Histogram, rec.Edges = p.Counts, p.Edges
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "iterate rounds")
}

func (s *SQLiteStore) Runs(ctx context.Context) ([]RunInfo, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id, gan_type, mode, seed, started_at FROM runs ORDER BY started_at, id`)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var run RunInfo
		var started string
		if err := rows.Scan(&run.ID, &run.GANType, &run.Mode, &run.Seed, &started); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, errors.Wrapf(err, "parse start time of %s", run.ID)
		}
		out = append(out, run)
	}
	return out, errors.Wrap(rows.Err(), "iterate runs")
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

// nullable maps NaN to NULL; SQLite cannot hold a NaN REAL.
func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

type histogramPayload struct {
	Counts []float64 `json:"counts"`
	Edges  []float64 `json:"edges"`
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			gan_type TEXT NOT NULL,
			mode TEXT NOT NULL,
			seed INTEGER NOT NULL,
			started_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS rounds (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			round INTEGER NOT NULL,
			mode TEXT NOT NULL,
			d_loss REAL,
			g_loss REAL,
			generation INTEGER NOT NULL,
			accepted INTEGER NOT NULL,
			sample_mean REAL,
			sample_std REAL,
			non_finite INTEGER NOT NULL DEFAULT 0,
			histogram BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS rounds_run ON rounds(run_id, seq);
	`)
	return err
}
