package repository

import (
	"context"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/scansmart/internal/common"
)

// ExportRecord is one produced artifact.
type ExportRecord struct {
	ID        string
	RunID     string
	Format    string
	Path      string
	MIMEType  string
	Size      int64
	CreatedAt time.Time
}

type ExportRepository interface {
	Record(ctx context.Context, e ExportRecord) error
	ListByRun(ctx context.Context, runID string) ([]ExportRecord, error)
}

type exportRepo struct {
	db  *DB
	log *slog.Logger
}

func NewExportRepository(db *DB, log *slog.Logger) ExportRepository {
	if log == nil {
		log = slog.Default()
	}
	return &exportRepo{db: db, log: log}
}

var exportColumns = []string{"id", "run_id", "format", "path", "mime_type", "size", "created_at"}

func (r *exportRepo) Record(ctx context.Context, e ExportRecord) error {
	query, args := r.db.builder().Insert("exports").
		Columns(exportColumns...).
		Values(e.ID, e.RunID, e.Format, e.Path, e.MIMEType, e.Size, toMillis(e.CreatedAt)).
		Query()
	if err := r.db.drv.Exec(ctx, query, args, nil); err != nil {
		r.log.Error("export record failed", "export_id", e.ID, "error", err)
		return common.NewAppError("DB_ERROR", "record export", err)
	}
	r.log.Debug("export recorded", "export_id", e.ID, "run_id", e.RunID)
	return nil
}

func (r *exportRepo) ListByRun(ctx context.Context, runID string) ([]ExportRecord, error) {
	query, args := r.db.builder().Select(exportColumns...).
		From(entsql.Table("exports")).
		Where(entsql.EQ("run_id", runID)).
		OrderBy(entsql.Asc("created_at")).
		Query()

	var rows entsql.Rows
	if err := r.db.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, common.NewAppError("DB_ERROR", "query exports", err)
	}
	defer rows.Close()

	var out []ExportRecord
	for rows.Next() {
		var e ExportRecord
		var created int64
		if err := rows.Scan(&e.ID, &e.RunID, &e.Format, &e.Path, &e.MIMEType, &e.Size, &created); err != nil {
			return nil, common.NewAppError("DB_ERROR", "scan row", err)
		}
		e.CreatedAt = fromMillis(created)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_ERROR", "iterate exports", err)
	}
	return out, nil
}
