// Package errs provides error handling for the digest pipeline.
//
// It re-exports the parts of github.com/cockroachdb/errors the codebase
// uses (stack traces, wrapping, errors.Is-compatible inspection) and
// defines one sentinel per pipeline stage. Stage code marks its failures
// with the matching sentinel so the driver can report which stage broke
// without string matching.
package errs

import (
	crdb "github.com/cockroachdb/errors"
)

var (
	New   = crdb.New
	Newf  = crdb.Newf
	Wrap  = crdb.Wrap
	Wrapf = crdb.Wrapf
	Mark  = crdb.Mark
	Is    = crdb.Is
	As    = crdb.As
)

// Stage sentinels. Wrap-and-mark with these; check with errs.Is.
var (
	// ErrExternalAPI covers auth failures, rate limiting and malformed
	// responses from the jobs API.
	ErrExternalAPI = New("external api error")

	// ErrStorage covers connection and write failures in the store.
	ErrStorage = New("storage error")

	// ErrReport covers aggregate query and render failures.
	ErrReport = New("report error")

	// ErrDelivery covers mail transport failures.
	ErrDelivery = New("delivery error")

	// ErrConfig covers missing or invalid required settings.
	ErrConfig = New("config error")
)

// Stage returns the short stage name for a marked pipeline error, or
// "unknown" if the error carries no stage sentinel.
func Stage(err error) string {
	switch {
	case Is(err, ErrConfig):
		return "config"
	case Is(err, ErrExternalAPI):
		return "fetch"
	// Report errors may wrap storage errors (a failed aggregate query),
	// so the report mark wins.
	case Is(err, ErrReport):
		return "report"
	case Is(err, ErrStorage):
		return "storage"
	case Is(err, ErrDelivery):
		return "delivery"
	default:
		return "unknown"
	}
}
