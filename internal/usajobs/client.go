// Package usajobs is a client for the USAJobs search API
// (https://developer.usajobs.gov/). It translates search criteria and a
// minimum publication date into normalized JobPosting records, paging
// through the full result set before returning.
package usajobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tasman/usajobs-digest/internal/config"
	"github.com/tasman/usajobs-digest/internal/errs"
	"github.com/tasman/usajobs-digest/internal/logger"
	"github.com/tasman/usajobs-digest/internal/models"
)

const (
	defaultPageSize = 500
	maxPages        = 10
	// The API's DatePosted parameter accepts at most 60 days back.
	maxDatePostedDays = 60

	rateLimitRetries = 3
	rateLimitWait    = 2 * time.Second

	errBodyLimit = 256
)

// APIError reports a non-OK response from the USAJobs API. Body is
// truncated so log lines stay bounded.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("usajobs api returned status %d: %s", e.Status, e.Body)
}

// Client talks to the USAJobs search endpoint.
type Client struct {
	baseURL    string
	key        string
	userAgent  string
	httpClient *http.Client

	pageSize  int
	retryWait time.Duration
}

// NewClient creates a USAJobs client from API configuration.
func NewClient(cfg config.APIConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		key:        cfg.Key,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		pageSize:   defaultPageSize,
		retryWait:  rateLimitWait,
	}
}

// searchResponse mirrors the top-level USAJobs JSON response.
type searchResponse struct {
	SearchResult struct {
		SearchResultCount    int          `json:"SearchResultCount"`
		SearchResultCountAll int          `json:"SearchResultCountAll"`
		SearchResultItems    []searchItem `json:"SearchResultItems"`
	} `json:"SearchResult"`
}

type searchItem struct {
	MatchedObjectID         string `json:"MatchedObjectId"`
	MatchedObjectDescriptor struct {
		PositionTitle           string `json:"PositionTitle"`
		OrganizationName        string `json:"OrganizationName"`
		PositionLocationDisplay string `json:"PositionLocationDisplay"`
		PositionURI             string `json:"PositionURI"`
		PublicationStartDate    string `json:"PublicationStartDate"`
		PositionRemuneration    []struct {
			MinimumRange     string `json:"MinimumRange"`
			MaximumRange     string `json:"MaximumRange"`
			RateIntervalCode string `json:"RateIntervalCode"`
		} `json:"PositionRemuneration"`
		UserArea struct {
			Details struct {
				JobSummary  string `json:"JobSummary"`
				WhoMayApply struct {
					Name string `json:"Name"`
				} `json:"WhoMayApply"`
			} `json:"Details"`
		} `json:"UserArea"`
	} `json:"MatchedObjectDescriptor"`
}

// Search fetches all postings matching the criteria published on or after
// since. It pages through the complete result set and returns a fully
// materialized slice. The date bound is an optimization only; callers must
// still dedupe by posting ID.
func (c *Client) Search(ctx context.Context, criteria models.SearchCriteria, since time.Time) ([]models.JobPosting, error) {
	params := url.Values{}
	if len(criteria.Keywords) > 0 {
		params.Set("Keyword", strings.Join(criteria.Keywords, ","))
	}
	if len(criteria.Titles) > 0 {
		params.Set("PositionTitle", strings.Join(criteria.Titles, ","))
	}
	if days, ok := datePostedDays(since, time.Now()); ok {
		params.Set("DatePosted", strconv.Itoa(days))
	}
	params.Set("ResultsPerPage", strconv.Itoa(c.pageSize))

	var postings []models.JobPosting
	total := -1

	for page := 1; page <= maxPages; page++ {
		params.Set("Page", strconv.Itoa(page))
		resp, err := c.fetchPage(ctx, params)
		if err != nil {
			return nil, err
		}

		total = resp.SearchResult.SearchResultCountAll
		for _, item := range resp.SearchResult.SearchResultItems {
			postings = append(postings, normalize(item))
		}

		if len(resp.SearchResult.SearchResultItems) == 0 || len(postings) >= total {
			return postings, nil
		}
	}

	if total > len(postings) {
		logger.Log.Warnw("result set truncated at page cap",
			"fetched", len(postings),
			"total", total,
			"max_pages", maxPages,
		)
	}
	return postings, nil
}

// fetchPage issues one GET, retrying a fixed number of times on HTTP 429.
func (c *Client) fetchPage(ctx context.Context, params url.Values) (*searchResponse, error) {
	var lastErr error
	for attempt := 0; attempt < rateLimitRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryWait):
			}
		}

		resp, err := c.fetchPageOnce(ctx, params)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var apiErr *APIError
		if !errs.As(err, &apiErr) || apiErr.Status != http.StatusTooManyRequests {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) fetchPageOnce(ctx context.Context, params url.Values) (*searchResponse, error) {
	reqURL := c.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errs.Mark(errs.Wrap(err, "building search request"), errs.ErrExternalAPI)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization-Key", c.key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Mark(errs.Wrap(err, "calling search endpoint"), errs.ErrExternalAPI)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Mark(errs.Wrap(err, "reading search response"), errs.ErrExternalAPI)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errs.Mark(&APIError{Status: resp.StatusCode, Body: truncate(body)}, errs.ErrExternalAPI)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errs.Mark(errs.Wrap(err, "unmarshaling search response"), errs.ErrExternalAPI)
	}
	return &parsed, nil
}

// normalize maps one API result item onto the stored shape. Title and
// organization are lowercased so the report aggregations group
// case-insensitively.
func normalize(item searchItem) models.JobPosting {
	d := item.MatchedObjectDescriptor
	p := models.JobPosting{
		ID:              item.MatchedObjectID,
		Title:           strings.ToLower(d.PositionTitle),
		Organization:    strings.ToLower(d.OrganizationName),
		Location:        d.PositionLocationDisplay,
		PublicationDate: parseDate(d.PublicationStartDate),
		URL:             d.PositionURI,
		Snippet:         d.UserArea.Details.JobSummary,
		WhoMayApply:     d.UserArea.Details.WhoMayApply.Name,
	}
	if len(d.PositionRemuneration) > 0 {
		r := d.PositionRemuneration[0]
		p.SalaryMin, _ = strconv.ParseFloat(r.MinimumRange, 64)
		p.SalaryMax, _ = strconv.ParseFloat(r.MaximumRange, 64)
		p.SalaryInterval = r.RateIntervalCode
	}
	return p
}

// parseDate handles both plain dates and the API's timestamp format.
func parseDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02", "2006-01-02T15:04:05.9999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// datePostedDays converts the watermark into the API's days-back parameter.
// Returns ok=false when the bound would exceed the API's maximum, in which
// case the parameter is omitted and the full result set is requested.
func datePostedDays(since, now time.Time) (int, bool) {
	if since.IsZero() {
		return 0, false
	}
	days := int(now.Sub(since).Hours() / 24)
	if days < 0 {
		days = 0
	}
	if days > maxDatePostedDays {
		return 0, false
	}
	return days, true
}

func truncate(body []byte) string {
	if len(body) > errBodyLimit {
		return string(body[:errBodyLimit]) + "..."
	}
	return string(body)
}
