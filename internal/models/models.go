package models

import "time"

// JobPosting is one normalized job listing from the USAJobs API.
// Rows are append-only: persisted once, never updated or deleted.
type JobPosting struct {
	ID              string    `json:"id"` // MatchedObjectId, unique in the store
	Title           string    `json:"title"`
	Organization    string    `json:"organization"`
	Location        string    `json:"location"`
	PublicationDate time.Time `json:"publication_date"`
	URL             string    `json:"url"`
	Snippet         string    `json:"snippet"`
	SalaryMin       float64   `json:"salary_min"`
	SalaryMax       float64   `json:"salary_max"`
	SalaryInterval  string    `json:"salary_interval"` // "Per Year", "Bi-weekly", "Per Month", ...
	WhoMayApply     string    `json:"who_may_apply"`
}

// SearchCriteria is the operator's query: titles are OR'd together, keywords
// are OR'd together, and the API ANDs the two groups.
type SearchCriteria struct {
	Titles   []string
	Keywords []string
}

// ReportTable is one aggregate query result: a header row plus data rows,
// all values already stringified for rendering.
type ReportTable struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// ReportResult is the full digest computed per run. Ephemeral: rendered to
// the report artifact and the email body, never persisted.
type ReportResult struct {
	GeneratedAt time.Time
	Tables      []ReportTable
}
