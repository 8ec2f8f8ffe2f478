package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nishad/srafetch/internal/models"
)

const (
	geoPath = "/geo/query/acc.cgi"
	enaPath = "/ena/portal/api/filereport"
)

// ArchiveRequest is one request seen by FakeArchive.
type ArchiveRequest struct {
	Service   string // "geo" or "ena"
	Accession string
	Query     url.Values
	At        time.Time
}

// FakeArchive serves GEO sample lookups and ENA filereport queries from
// in-memory fixtures.
type FakeArchive struct {
	Server *httptest.Server

	mu       sync.Mutex
	samples  map[string]string
	records  map[string][]models.Record
	raw      map[string]string
	status   map[string]int
	delay    time.Duration
	requests []ArchiveRequest
}

// NewFakeArchive starts a fake archive preloaded with SRR000001,
// SRX2243567 and GSM2344754. Close it with Close.
func NewFakeArchive() *FakeArchive {
	fa := &FakeArchive{
		samples: make(map[string]string),
		records: make(map[string][]models.Record),
		raw:     make(map[string]string),
		status:  make(map[string]int),
	}
	fa.AddRecords("SRR000001", RunSRR000001()...)
	fa.AddRecords("SRX2243567", ExperimentSRX2243567()...)
	fa.AddSample("GSM2344754", GEOSampleGSM2344754())

	mux := http.NewServeMux()
	mux.HandleFunc(geoPath, fa.handleGEO)
	mux.HandleFunc(enaPath, fa.handleENA)
	fa.Server = httptest.NewServer(mux)
	return fa
}

// GEOURL returns the GEO query endpoint of the fake.
func (fa *FakeArchive) GEOURL() string {
	return fa.Server.URL + geoPath
}

// ENAURL returns the filereport endpoint of the fake.
func (fa *FakeArchive) ENAURL() string {
	return fa.Server.URL + enaPath
}

// Close shuts the server down.
func (fa *FakeArchive) Close() {
	fa.Server.Close()
}

// AddSample registers the GEO XML document returned for gsm.
func (fa *FakeArchive) AddSample(gsm, xmlDoc string) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.samples[strings.ToUpper(gsm)] = xmlDoc
}

// AddRecords registers filereport rows for an accession.
func (fa *FakeArchive) AddRecords(acc string, records ...models.Record) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	key := strings.ToUpper(acc)
	fa.records[key] = append(fa.records[key], records...)
}

// SetRaw makes the accession answer with a raw body on either service.
func (fa *FakeArchive) SetRaw(acc, body string) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.raw[strings.ToUpper(acc)] = body
}

// SetStatus makes the accession answer with an HTTP error status.
func (fa *FakeArchive) SetStatus(acc string, code int) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.status[strings.ToUpper(acc)] = code
}

// SetDelay delays every response.
func (fa *FakeArchive) SetDelay(d time.Duration) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.delay = d
}

// Requests returns a copy of all requests seen so far.
func (fa *FakeArchive) Requests() []ArchiveRequest {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	out := make([]ArchiveRequest, len(fa.requests))
	copy(out, fa.requests)
	return out
}

// RequestsFor returns the requests made to one service.
func (fa *FakeArchive) RequestsFor(service string) []ArchiveRequest {
	var out []ArchiveRequest
	for _, r := range fa.Requests() {
		if r.Service == service {
			out = append(out, r)
		}
	}
	return out
}

func (fa *FakeArchive) record(service, acc string, q url.Values) (key string, delay time.Duration) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.requests = append(fa.requests, ArchiveRequest{Service: service, Accession: acc, Query: q, At: time.Now()})
	return strings.ToUpper(acc), fa.delay
}

func (fa *FakeArchive) wait(r *http.Request, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-r.Context().Done():
		return false
	}
}

// override returns an injected status or raw body for key, if any.
func (fa *FakeArchive) override(key string) (int, string, bool) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	if code, ok := fa.status[key]; ok {
		return code, "", true
	}
	if body, ok := fa.raw[key]; ok {
		return http.StatusOK, body, true
	}
	return 0, "", false
}

func (fa *FakeArchive) handleGEO(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key, delay := fa.record("geo", q.Get("acc"), q)
	if !fa.wait(r, delay) {
		return
	}

	if code, body, ok := fa.override(key); ok {
		w.WriteHeader(code)
		w.Write([]byte(body))
		return
	}

	fa.mu.Lock()
	doc, ok := fa.samples[key]
	fa.mu.Unlock()
	if !ok {
		doc = `<?xml version="1.0"?><MINiML xmlns="http://www.ncbi.nlm.nih.gov/geo/info/MINiML"></MINiML>`
	}
	w.Header().Set("Content-Type", "text/xml")
	w.Write([]byte(doc))
}

func (fa *FakeArchive) handleENA(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key, delay := fa.record("ena", q.Get("accession"), q)
	if !fa.wait(r, delay) {
		return
	}

	if code, body, ok := fa.override(key); ok {
		w.WriteHeader(code)
		w.Write([]byte(body))
		return
	}

	fa.mu.Lock()
	records, ok := fa.records[key]
	fa.mu.Unlock()
	if !ok {
		// ENA answers unknown accessions with an empty body
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}
