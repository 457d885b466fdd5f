// Package report turns the stored postings into the operator's digest:
// a fixed set of aggregate tables rendered to one plain-text artifact.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/tasman/usajobs-digest/internal/config"
	"github.com/tasman/usajobs-digest/internal/errs"
	"github.com/tasman/usajobs-digest/internal/logger"
	"github.com/tasman/usajobs-digest/internal/models"
	"github.com/tasman/usajobs-digest/internal/storage"
)

// Service generates and renders the digest report.
type Service struct {
	store storage.Store
	path  string
}

// NewService creates a new report service
func NewService(store storage.Store, cfg config.ReportConfig) *Service {
	return &Service{store: store, path: cfg.Path}
}

// Generate runs every report template against the store. Deterministic for
// a fixed store snapshot: the templates carry their own ordering.
func (s *Service) Generate(ctx context.Context) (*models.ReportResult, error) {
	result := &models.ReportResult{GeneratedAt: time.Now().UTC()}
	for _, tmpl := range storage.Templates {
		table, err := s.store.Query(ctx, tmpl)
		if err != nil {
			return nil, errs.Mark(errs.Wrapf(err, "generating %s", tmpl.Name()), errs.ErrReport)
		}
		result.Tables = append(result.Tables, table)
	}
	return result, nil
}

// Render formats the result and atomically replaces the report artifact,
// returning the rendered text. The prior file stays intact if anything
// fails before the final rename.
func (s *Service) Render(result *models.ReportResult) (string, error) {
	text := Format(result)
	if err := writeAtomic(s.path, []byte(text)); err != nil {
		return "", errs.Mark(errs.Wrapf(err, "writing report to %s", s.path), errs.ErrReport)
	}
	logger.Log.Infow("report written", "path", s.path, "tables", len(result.Tables))
	return text, nil
}

// Path returns the configured report artifact location.
func (s *Service) Path() string {
	return s.path
}

// Format renders the result as readable plain text, one aligned table per
// template.
func Format(result *models.ReportResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job postings digest — generated %s\n", result.GeneratedAt.Format("2006-01-02 15:04 MST"))

	for _, table := range result.Tables {
		fmt.Fprintf(&b, "\n## %s\n\n", table.Name)
		if len(table.Rows) == 0 {
			b.WriteString("(no rows)\n")
			continue
		}
		w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, strings.Join(table.Columns, "\t"))
		for _, row := range table.Rows {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		w.Flush()
	}
	return b.String()
}

// writeAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never observe a partial artifact.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".digest-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
