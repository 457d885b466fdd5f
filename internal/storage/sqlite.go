package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tasman/usajobs-digest/internal/config"
	"github.com/tasman/usajobs-digest/internal/errs"
	"github.com/tasman/usajobs-digest/internal/logger"
	"github.com/tasman/usajobs-digest/internal/models"
)

// SQLiteStore implements Store on a local SQLite file. This is the default
// backend: one file, no server, suits the single daily scheduled run.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLiteStore opens (creating if absent) the SQLite database file.
func NewSQLiteStore(cfg config.StorageConfig) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, errs.Mark(errs.Wrap(err, "opening sqlite database"), errs.ErrStorage)
	}

	// WAL keeps the report queries readable while the ingest transaction
	// is open; the busy timeout covers a stray overlapping invocation.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errs.Mark(errs.Wrapf(err, "applying %s", pragma), errs.ErrStorage)
		}
	}

	logger.Log.Debugw("sqlite database opened", "path", cfg.Path, "table", cfg.TableName)
	return &SQLiteStore{db: db, table: cfg.TableName}, nil
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		organization TEXT,
		location TEXT,
		publication_date DATE,
		url TEXT,
		snippet TEXT,
		salary_min REAL,
		salary_max REAL,
		salary_interval TEXT,
		who_may_apply TEXT
	)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return errs.Mark(errs.Wrap(err, "creating posting table"), errs.ErrStorage)
	}
	return nil
}

func (s *SQLiteStore) LatestPublicationDate(ctx context.Context) (time.Time, error) {
	var max sql.NullString
	query := fmt.Sprintf("SELECT max(publication_date) FROM %s", s.table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&max); err != nil {
		return time.Time{}, errs.Mark(errs.Wrap(err, "querying latest publication date"), errs.ErrStorage)
	}
	if !max.Valid {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, max.String)
	if err != nil {
		return time.Time{}, errs.Mark(errs.Wrapf(err, "parsing stored date %q", max.String), errs.ErrStorage)
	}
	return t, nil
}

func (s *SQLiteStore) InsertPostings(ctx context.Context, postings []models.JobPosting) (int, error) {
	if len(postings) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errs.Mark(errs.Wrap(err, "beginning insert transaction"), errs.ErrStorage)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`INSERT OR IGNORE INTO %s
		(id, title, organization, location, publication_date, url, snippet,
		 salary_min, salary_max, salary_interval, who_may_apply)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, errs.Mark(errs.Wrap(err, "preparing insert"), errs.ErrStorage)
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range postings {
		res, err := stmt.ExecContext(ctx,
			p.ID, p.Title, p.Organization, p.Location,
			p.PublicationDate.Format(dateLayout), p.URL, p.Snippet,
			p.SalaryMin, p.SalaryMax, p.SalaryInterval, p.WhoMayApply,
		)
		if err != nil {
			return 0, errs.Mark(errs.Wrapf(err, "inserting posting %s", p.ID), errs.ErrStorage)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, errs.Mark(errs.Wrap(err, "reading rows affected"), errs.ErrStorage)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.Mark(errs.Wrap(err, "committing insert transaction"), errs.ErrStorage)
	}
	return inserted, nil
}

func (s *SQLiteStore) Query(ctx context.Context, tmpl Template) (models.ReportTable, error) {
	query, err := s.templateSQL(tmpl)
	if err != nil {
		return models.ReportTable{}, err
	}
	return runTemplate(ctx, s.db, tmpl, query)
}

func (s *SQLiteStore) templateSQL(tmpl Template) (string, error) {
	switch tmpl {
	case MonthlySalaryByTitle:
		return fmt.Sprintf(`
			SELECT title,
			       strftime('%%m-%%Y', publication_date) AS month,
			       sum(CASE
			           WHEN salary_interval = 'Per Year' THEN salary_min / 12
			           WHEN salary_interval = 'Bi-weekly' THEN salary_min * 2.17
			           WHEN salary_interval = 'Per Month' THEN salary_min
			           END) AS monthly_salary_min
			FROM %s
			WHERE salary_interval IN ('Per Year', 'Bi-weekly', 'Per Month')
			GROUP BY title, month
			ORDER BY monthly_salary_min`, s.table), nil
	case AvgSalaryByEligibility:
		return fmt.Sprintf(`
			SELECT who_may_apply,
			       avg((salary_max - salary_min) / 2) AS avg_salary
			FROM %s
			WHERE who_may_apply IN ('United States Citizens', 'Student/Internship Program Eligibles')
			GROUP BY who_may_apply`, s.table), nil
	case OpeningsByOrganization:
		return fmt.Sprintf(`
			SELECT organization,
			       count(*) AS openings
			FROM %s
			GROUP BY organization
			ORDER BY openings DESC, organization`, s.table), nil
	default:
		return "", errs.Mark(errs.Newf("unknown report template %d", tmpl), errs.ErrReport)
	}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
