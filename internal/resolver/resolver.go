// Package resolver maps typed accessions to identifiers the ENA filereport
// endpoint accepts. Experiments and runs are queryable as given; GEO samples
// are looked up on NCBI GEO and resolved through their SRA relation.
package resolver

import (
	"context"
	"encoding/xml"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/nishad/srafetch/internal/accession"
	"github.com/nishad/srafetch/internal/errors"
)

// DefaultGEOURL is the GEO accession display endpoint.
const DefaultGEOURL = "https://www.ncbi.nlm.nih.gov/geo/query/acc.cgi"

var (
	// ErrNoCrossReference means the sample exists but has no SRA experiment.
	ErrNoCrossReference = stderrors.New("no SRA cross-reference")
	// ErrResolutionFailed matches every *ResolutionError.
	ErrResolutionFailed = stderrors.New("resolution failed")
)

var experimentPattern = regexp.MustCompile(`[SED]RX\d+`)

// ResolutionError reports a lookup that failed for a structural reason
// (transport, HTTP status or malformed document).
type ResolutionError struct {
	Accession string
	Err       error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Accession, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrResolutionFailed) match.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolutionFailed
}

// Config holds resolver settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
}

// Resolver resolves accessions to queryable identifiers. It is safe for
// concurrent use.
type Resolver struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// New creates a resolver.
func New(cfg Config) *Resolver {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultGEOURL
	}
	return &Resolver{
		httpClient: client,
		baseURL:    baseURL,
		userAgent:  cfg.UserAgent,
	}
}

// Resolve returns the identifier to query ENA with. Only samples touch the
// network. A sample without an SRA relation yields ErrNoCrossReference; a
// failed lookup yields a *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, acc accession.Accession) (string, error) {
	switch acc.Kind {
	case accession.KindExperiment, accession.KindRun:
		return acc.Code, nil
	case accession.KindSample:
		return r.LookupSample(ctx, acc.Code)
	default:
		return "", errors.E(errors.Op("resolver.Resolve"), errors.KindValidation,
			fmt.Sprintf("unsupported accession kind %d for %s", acc.Kind, acc.Code))
	}
}

// GEO MINiML quick view. Element names are matched without namespace.
type minimlDocument struct {
	XMLName xml.Name
	Samples []minimlSample `xml:"Sample"`
}

type minimlSample struct {
	IID       string           `xml:"iid,attr"`
	Relations []minimlRelation `xml:"Relation"`
}

type minimlRelation struct {
	Type   string `xml:"type,attr"`
	Target string `xml:"target,attr"`
}

// LookupSample fetches the GEO record of a GSM sample and returns the SRA
// experiment accession embedded in its SRA relation.
func (r *Resolver) LookupSample(ctx context.Context, code string) (string, error) {
	const op = errors.Op("resolver.LookupSample")

	params := url.Values{}
	params.Set("acc", code)
	params.Set("targ", "self")
	params.Set("form", "xml")
	params.Set("view", "quick")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", &ResolutionError{Accession: code, Err: errors.E(op, errors.KindValidation, err)}
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", &ResolutionError{Accession: code, Err: errors.E(op, errors.KindNetwork, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &ResolutionError{Accession: code,
			Err: errors.E(op, errors.KindNetwork, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ResolutionError{Accession: code, Err: errors.E(op, errors.KindNetwork, err, "reading response")}
	}

	var doc minimlDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", &ResolutionError{Accession: code, Err: errors.E(op, errors.KindDecode, err)}
	}
	if doc.XMLName.Local != "MINiML" {
		return "", &ResolutionError{Accession: code,
			Err: errors.E(op, errors.KindDecode, fmt.Sprintf("unexpected root element <%s>", doc.XMLName.Local))}
	}

	return experimentFromDocument(code, &doc)
}

func experimentFromDocument(code string, doc *minimlDocument) (string, error) {
	// one GSM has one Sample, possibly several Relations
	if len(doc.Samples) == 0 {
		return "", fmt.Errorf("%s: no Sample element: %w", code, ErrNoCrossReference)
	}
	for _, rel := range doc.Samples[0].Relations {
		if rel.Type != "SRA" {
			continue
		}
		if srx := experimentPattern.FindString(rel.Target); srx != "" {
			return srx, nil
		}
		return "", fmt.Errorf("%s: SRA relation target %q has no experiment accession: %w",
			code, rel.Target, ErrNoCrossReference)
	}
	return "", fmt.Errorf("%s: no SRA relation: %w", code, ErrNoCrossReference)
}
