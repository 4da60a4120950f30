// Package db stores tracker runs and their detections in SQLite so counts can
// be answered without re-reading the day logs.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/camera.report/internal/monitoring"
	"github.com/banshee-data/camera.report/internal/pipeline"
	"github.com/banshee-data/camera.report/internal/records"
)

// pragmas are applied to every pooled connection through the DSN.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
	"foreign_keys(1)",
}

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

type DB struct {
	*sql.DB
}

func dsn(path string) string {
	var b strings.Builder
	b.WriteString(path)
	for i, p := range pragmas {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString("_pragma=")
		b.WriteString(p)
	}
	return b.String()
}

// OpenDB opens the database without touching the schema.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DB{sqlDB}, nil
}

// NewDB opens the database and applies any pending migrations.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Run is one tracker session against one camera.
type Run struct {
	ID       string     `json:"run_id"`
	Camera   string     `json:"camera"`
	Detailed bool       `json:"detailed"`
	Started  time.Time  `json:"started"`
	Finished *time.Time `json:"finished,omitempty"`
	Frames   int        `json:"frames"`
	Records  int        `json:"records"`
	Evicted  int        `json:"evicted"`
}

// StartRun inserts a new run and returns it.
func (db *DB) StartRun(ctx context.Context, camera string, detailed bool, started time.Time) (*Run, error) {
	run := &Run{
		ID:       uuid.NewString(),
		Camera:   camera,
		Detailed: detailed,
		Started:  started,
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO runs (run_id, camera, detailed, started_unix_us) VALUES (?, ?, ?, ?)`,
		run.ID, run.Camera, run.Detailed, started.UnixMicro())
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	monitoring.Logf("db: started run %s for %s", run.ID, camera)
	return run, nil
}

// FinishRun stamps the end time and final counters on a run.
func (db *DB) FinishRun(ctx context.Context, id string, finished time.Time, stats pipeline.Stats) error {
	res, err := db.ExecContext(ctx, `
		UPDATE runs
		   SET finished_unix_us = ?, frames = ?, records = ?, evicted = ?
		 WHERE run_id = ?`,
		finished.UnixMicro(), stats.Frames, stats.Records, stats.Evicted, id)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// Runs lists runs for camera, newest first. An empty camera lists all.
func (db *DB) Runs(ctx context.Context, camera string) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, camera, detailed, started_unix_us, finished_unix_us, frames, records, evicted
		  FROM runs
		 WHERE ? = '' OR camera = ?
		 ORDER BY started_unix_us DESC`, camera, camera)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Camera, &r.Detailed, &started, &finished, &r.Frames, &r.Records, &r.Evicted); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started = time.UnixMicro(started)
		if finished.Valid {
			t := time.UnixMicro(finished.Int64)
			r.Finished = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunSink writes records for a single run. It implements pipeline.Sink.
type RunSink struct {
	run  *Run
	stmt *sql.Stmt
}

// NewRunSink prepares the insert statement for run.
func (db *DB) NewRunSink(ctx context.Context, run *Run) (*RunSink, error) {
	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO detections (
			run_id, camera, frame_number, object_id, vehicle_type,
			bb_left, bb_top, box_width, box_height, confidence, ts_unix_us
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare detection insert: %w", err)
	}
	return &RunSink{run: run, stmt: stmt}, nil
}

// Write inserts one record.
func (s *RunSink) Write(r records.Record) error {
	_, err := s.stmt.Exec(
		s.run.ID, s.run.Camera, r.FrameNumber, r.ObjectID, r.VehicleType,
		r.BBLeft, r.BBTop, r.BoxWidth, r.BoxHeight, r.Confidence, r.Timestamp.UnixMicro())
	if err != nil {
		return fmt.Errorf("insert detection: %w", err)
	}
	return nil
}

// Close releases the prepared statement.
func (s *RunSink) Close() error {
	return s.stmt.Close()
}

// CountQuery selects detections for CountUniqueVehicles. Start and End are
// inclusive. An empty Camera matches every camera.
type CountQuery struct {
	Camera    string
	Start     time.Time
	End       time.Time
	Threshold float64
	Types     []string
}

func (q CountQuery) where() (string, []any) {
	clauses := []string{"ts_unix_us BETWEEN ? AND ?", "confidence >= ?"}
	args := []any{q.Start.UnixMicro(), q.End.UnixMicro(), q.Threshold}
	if q.Camera != "" {
		clauses = append(clauses, "camera = ?")
		args = append(args, q.Camera)
	}
	if len(q.Types) > 0 {
		clauses = append(clauses, "vehicle_type IN (?"+strings.Repeat(", ?", len(q.Types)-1)+")")
		for _, t := range q.Types {
			args = append(args, t)
		}
	}
	return strings.Join(clauses, " AND "), args
}

// CountUniqueVehicles counts distinct tracks matching q. Track ids restart
// with every run, so a vehicle is identified by its run and object id.
func (db *DB) CountUniqueVehicles(ctx context.Context, q CountQuery) (int, error) {
	where, args := q.where()
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM (SELECT DISTINCT run_id, object_id FROM detections WHERE `+where+`)`,
		args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unique vehicles: %w", err)
	}
	return n, nil
}

// CountByType breaks CountUniqueVehicles down by vehicle type. A track that
// changed class between frames counts once under each type it was seen as.
func (db *DB) CountByType(ctx context.Context, q CountQuery) (map[string]int, error) {
	where, args := q.where()
	rows, err := db.QueryContext(ctx, `
		SELECT vehicle_type, COUNT(*) FROM (
			SELECT DISTINCT run_id, object_id, vehicle_type FROM detections WHERE `+where+`
		) GROUP BY vehicle_type`, args...)
	if err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[name] = n
	}
	return out, rows.Err()
}
