// Package accession classifies input lines into typed SRA/GEO accessions.
package accession

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed set of accession types srafetch understands.
type Kind uint8

const (
	KindExperiment Kind = iota + 1 // SRX
	KindRun                        // SRR
	KindSample                     // GSM
)

// String returns the accession prefix for the kind.
func (k Kind) String() string {
	switch k {
	case KindExperiment:
		return "SRX"
	case KindRun:
		return "SRR"
	case KindSample:
		return "GSM"
	default:
		return "unknown"
	}
}

// Label returns a human readable name for the kind.
func (k Kind) Label() string {
	switch k {
	case KindExperiment:
		return "experiment"
	case KindRun:
		return "run"
	case KindSample:
		return "sample"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind as its label.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.Label()), nil
}

// UnmarshalText accepts a label or a prefix.
func (k *Kind) UnmarshalText(b []byte) error {
	for _, c := range []Kind{KindExperiment, KindRun, KindSample} {
		if s := string(b); strings.EqualFold(s, c.Label()) || strings.EqualFold(s, c.String()) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown accession kind %q", b)
}

var (
	ErrEmptyInput    = errors.New("empty input")
	ErrTooManyFields = errors.New("too many fields (names cannot contain whitespace)")
	ErrUnknownPrefix = errors.New("unknown accession prefix")
)

// ParseError describes a line that could not be turned into an Accession.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Reason returns a short machine-readable reason for a parse failure.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, ErrTooManyFields):
		return "too_many_fields"
	case errors.Is(err, ErrUnknownPrefix):
		return "unknown_prefix"
	default:
		return "unknown"
	}
}

// Accession is one parsed input line. Code keeps the case it was given in.
type Accession struct {
	Kind Kind   `json:"kind"`
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

// HasName reports whether the caller supplied a display name.
func (a Accession) HasName() bool {
	return a.Name != ""
}

// DisplayName returns the name, or "NA" when none was given.
func (a Accession) DisplayName() string {
	if a.Name == "" {
		return "NA"
	}
	return a.Name
}

func (a Accession) String() string {
	if a.Name == "" {
		return a.Code
	}
	return a.Code + " " + a.Name
}

// Parse splits line on whitespace into an accession code and an optional
// name and classifies the code by its first three characters.
func Parse(line string) (Accession, error) {
	fields := strings.Fields(line)
	switch {
	case len(fields) == 0:
		return Accession{}, &ParseError{Line: line, Err: ErrEmptyInput}
	case len(fields) > 2:
		return Accession{}, &ParseError{Line: line, Err: ErrTooManyFields}
	}

	code := fields[0]
	kind, ok := KindOf(code)
	if !ok {
		return Accession{}, &ParseError{Line: line, Err: ErrUnknownPrefix}
	}

	acc := Accession{Kind: kind, Code: code}
	if len(fields) == 2 {
		acc.Name = fields[1]
	}
	return acc, nil
}

// KindOf classifies code by its prefix, ignoring case.
func KindOf(code string) (Kind, bool) {
	if len(code) < 3 {
		return 0, false
	}
	switch strings.ToUpper(code[:3]) {
	case "SRX":
		return KindExperiment, true
	case "SRR":
		return KindRun, true
	case "GSM":
		return KindSample, true
	}
	return 0, false
}
