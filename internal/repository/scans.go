package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/scansmart/internal/common"
)

// StatusSuperseded marks a run whose result was dropped for a newer acquisition.
const StatusSuperseded = "SUPERSEDED"

// Scan is one extraction run as recorded in history.
type Scan struct {
	RunID      string
	Source     string
	ImagePath  string
	ImageHash  string
	Status     string
	Engine     string
	Text       string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

type ScanRepository interface {
	Start(ctx context.Context, s Scan) error
	Finish(ctx context.Context, runID, status, engine, text, errMsg string) error
	Get(ctx context.Context, runID string) (*Scan, error)
	ListRecent(ctx context.Context, limit int) ([]Scan, error)
}

type scanRepo struct {
	db  *DB
	log *slog.Logger
}

func NewScanRepository(db *DB, log *slog.Logger) ScanRepository {
	if log == nil {
		log = slog.Default()
	}
	return &scanRepo{db: db, log: log}
}

var scanColumns = []string{
	"run_id", "source", "image_path", "image_hash", "status",
	"engine", "text", "error", "started_at", "finished_at",
}

func (r *scanRepo) Start(ctx context.Context, s Scan) error {
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	query, args := r.db.builder().Insert("scans").
		Columns(scanColumns...).
		Values(s.RunID, s.Source, s.ImagePath, s.ImageHash, s.Status,
			s.Engine, s.Text, s.Error, toMillis(s.StartedAt), toMillis(s.FinishedAt)).
		Query()
	if err := r.db.drv.Exec(ctx, query, args, nil); err != nil {
		r.log.Error("scan start failed", "run_id", s.RunID, "error", err)
		return common.NewAppError("DB_ERROR", "record scan", err)
	}
	r.log.Debug("scan started", "run_id", s.RunID, "source", s.Source)
	return nil
}

func (r *scanRepo) Finish(ctx context.Context, runID, status, engine, text, errMsg string) error {
	query, args := r.db.builder().Update("scans").
		Set("status", status).
		Set("engine", engine).
		Set("text", text).
		Set("error", errMsg).
		Set("finished_at", toMillis(time.Now())).
		Where(entsql.EQ("run_id", runID)).
		Query()
	var res sql.Result
	if err := r.db.drv.Exec(ctx, query, args, &res); err != nil {
		r.log.Error("scan finish failed", "run_id", runID, "error", err)
		return common.NewAppError("DB_ERROR", "finish scan", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewAppError("NOT_FOUND", fmt.Sprintf("scan %s", runID), common.ErrNotFound)
	}
	r.log.Debug("scan finished", "run_id", runID, "status", status)
	return nil
}

func (r *scanRepo) Get(ctx context.Context, runID string) (*Scan, error) {
	query, args := r.db.builder().Select(scanColumns...).
		From(entsql.Table("scans")).
		Where(entsql.EQ("run_id", runID)).
		Query()
	scans, err := r.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(scans) == 0 {
		return nil, common.NewAppError("NOT_FOUND", fmt.Sprintf("scan %s", runID), common.ErrNotFound)
	}
	return &scans[0], nil
}

func (r *scanRepo) ListRecent(ctx context.Context, limit int) ([]Scan, error) {
	if limit <= 0 {
		limit = 20
	}
	query, args := r.db.builder().Select(scanColumns...).
		From(entsql.Table("scans")).
		OrderBy(entsql.Desc("started_at")).
		Limit(limit).
		Query()
	return r.query(ctx, query, args)
}

func (r *scanRepo) query(ctx context.Context, query string, args []any) ([]Scan, error) {
	var rows entsql.Rows
	if err := r.db.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, common.NewAppError("DB_ERROR", "query scans", err)
	}
	defer rows.Close()

	var out []Scan
	for rows.Next() {
		var s Scan
		var started, finished int64
		if err := rows.Scan(&s.RunID, &s.Source, &s.ImagePath, &s.ImageHash, &s.Status,
			&s.Engine, &s.Text, &s.Error, &started, &finished); err != nil {
			return nil, common.NewAppError("DB_ERROR", "scan row", err)
		}
		s.StartedAt, s.FinishedAt = fromMillis(started), fromMillis(finished)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_ERROR", "iterate scans", err)
	}
	return out, nil
}
