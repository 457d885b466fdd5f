package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/tasman/usajobs-digest/internal/config"
	"github.com/tasman/usajobs-digest/internal/errs"
	"github.com/tasman/usajobs-digest/internal/logger"
	"github.com/tasman/usajobs-digest/internal/models"
)

// PostgresStore implements Store on PostgreSQL, for deployments that
// already run a database server instead of keeping a local file.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// NewPostgresStore connects to the configured PostgreSQL instance.
func NewPostgresStore(cfg config.StorageConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		return nil, errs.Mark(errs.Wrap(err, "opening postgres connection"), errs.ErrStorage)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errs.Mark(errs.Wrap(err, "pinging postgres"), errs.ErrStorage)
	}

	logger.Log.Debugw("postgres connection established", "table", cfg.TableName)
	return &PostgresStore{db: db, table: cfg.TableName}, nil
}

func (s *PostgresStore) Init(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		organization TEXT,
		location TEXT,
		publication_date DATE,
		url TEXT,
		snippet TEXT,
		salary_min DOUBLE PRECISION,
		salary_max DOUBLE PRECISION,
		salary_interval TEXT,
		who_may_apply TEXT
	)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return errs.Mark(errs.Wrap(err, "creating posting table"), errs.ErrStorage)
	}
	return nil
}

func (s *PostgresStore) LatestPublicationDate(ctx context.Context) (time.Time, error) {
	var max sql.NullString
	query := fmt.Sprintf("SELECT to_char(max(publication_date), 'YYYY-MM-DD') FROM %s", s.table)
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

func (s *PostgresStore) InsertPostings(ctx context.Context, postings []models.JobPosting) (int, error) {
	if len(postings) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errs.Mark(errs.Wrap(err, "beginning insert transaction"), errs.ErrStorage)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`INSERT INTO %s
		(id, title, organization, location, publication_date, url, snippet,
		 salary_min, salary_max, salary_interval, who_may_apply)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`, s.table)
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

func (s *PostgresStore) Query(ctx context.Context, tmpl Template) (models.ReportTable, error) {
	query, err := s.templateSQL(tmpl)
	if err != nil {
		return models.ReportTable{}, err
	}
	return runTemplate(ctx, s.db, tmpl, query)
}

func (s *PostgresStore) templateSQL(tmpl Template) (string, error) {
	switch tmpl {
	case MonthlySalaryByTitle:
		return fmt.Sprintf(`
			SELECT title,
			       to_char(publication_date, 'MM-YYYY') AS month,
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

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
