package storage

import (
	"context"
	"database/sql"

	"github.com/tasman/usajobs-digest/internal/errs"
	"github.com/tasman/usajobs-digest/internal/models"
)

// Dates are stored as ISO strings so max() orders them correctly in both
// backends.
const dateLayout = "2006-01-02"

// runTemplate executes one template query and materializes the result set
// with every value stringified, ready for rendering.
func runTemplate(ctx context.Context, db *sql.DB, tmpl Template, query string) (models.ReportTable, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return models.ReportTable{}, errs.Mark(errs.Wrapf(err, "running template %s", tmpl.Name()), errs.ErrStorage)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return models.ReportTable{}, errs.Mark(errs.Wrapf(err, "reading columns for %s", tmpl.Name()), errs.ErrStorage)
	}

	table := models.ReportTable{Name: tmpl.Name(), Columns: cols}
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return models.ReportTable{}, errs.Mark(errs.Wrapf(err, "scanning row for %s", tmpl.Name()), errs.ErrStorage)
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = v.String
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return models.ReportTable{}, errs.Mark(errs.Wrapf(err, "iterating rows for %s", tmpl.Name()), errs.ErrStorage)
	}
	return table, nil
}
