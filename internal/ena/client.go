// Package ena queries the ENA portal filereport endpoint for run-level
// FASTQ listings.
package ena

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nishad/srafetch/internal/errors"
	"github.com/nishad/srafetch/internal/models"
)

const (
	// DefaultFileReportURL is the ENA portal filereport endpoint.
	DefaultFileReportURL = "https://www.ebi.ac.uk/ena/portal/api/filereport"

	// FileReportFields is the fixed field set requested per run.
	FileReportFields = "experiment_accession,run_accession,fastq_ftp,fastq_md5,fastq_aspera"
)

var (
	ErrNetwork = stderrors.New("network error")
	ErrDecode  = stderrors.New("decode error")
)

// FetchError reports a failed filereport query. It matches ErrNetwork or
// ErrDecode through errors.Is.
type FetchError struct {
	Accession string
	Kind      error
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v: %v", e.Accession, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == e.Kind
}

// Config holds client settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
}

// Client is an ENA filereport client. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewClient creates a client.
func NewClient(cfg Config) *Client {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultFileReportURL
	}
	return &Client{
		httpClient: client,
		baseURL:    baseURL,
		userAgent:  cfg.UserAgent,
	}
}

// FetchRecords returns the read_run rows for id. One request, no retries.
func (c *Client) FetchRecords(ctx context.Context, id string) ([]models.Record, error) {
	const op = errors.Op("ena.FetchRecords")

	params := url.Values{}
	params.Set("accession", id)
	params.Set("result", "read_run")
	params.Set("format", "json")
	params.Set("fields", FileReportFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &FetchError{Accession: id, Kind: ErrNetwork, Err: errors.E(op, errors.KindValidation, err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Accession: id, Kind: ErrNetwork, Err: errors.E(op, errors.KindNetwork, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Accession: id, Kind: ErrNetwork,
			Err: errors.E(op, errors.KindNetwork, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Accession: id, Kind: ErrNetwork, Err: errors.E(op, errors.KindNetwork, err, "reading response")}
	}

	return decodeRecords(id, body)
}

func decodeRecords(id string, body []byte) ([]models.Record, error) {
	// unknown accessions come back as an empty body
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var records []models.Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, &FetchError{Accession: id, Kind: ErrDecode,
			Err: errors.E(errors.Op("ena.decodeRecords"), errors.KindDecode, err)}
	}
	return records, nil
}
