// Package export serializes download descriptors for downstream tools:
// aria2 input files, JSON for aspera wrappers, and a few tabular forms.
package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nishad/srafetch/internal/models"
	"gopkg.in/yaml.v3"
)

// Format is an output format name.
type Format string

const (
	FormatAria2 Format = "aria2"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
	FormatTSV   Format = "tsv"
)

// Formats lists the supported formats in help order.
var Formats = []Format{FormatAria2, FormatJSON, FormatJSONL, FormatYAML, FormatTSV}

// ParseFormat validates a format name, ignoring case.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatAria2, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (want one of %s)", s, formatList())
}

func formatList() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, "|")
}

// ContentType returns the MIME type used when serving a format over HTTP.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatJSONL:
		return "application/x-ndjson"
	case FormatYAML:
		return "application/yaml"
	case FormatTSV:
		return "text/tab-separated-values"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Write serializes descriptors to w in format f.
func Write(w io.Writer, f Format, descriptors []models.Descriptor) error {
	switch f {
	case FormatAria2, "":
		return WriteAria2(w, descriptors)
	case FormatJSON:
		return WriteJSON(w, descriptors)
	case FormatJSONL:
		return WriteJSONL(w, descriptors)
	case FormatYAML:
		return WriteYAML(w, descriptors)
	case FormatTSV:
		return WriteTSV(w, descriptors)
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}

// Aria2Entry renders one aria2 input-file entry: the URL followed by
// indented checksum, integrity and output options.
func Aria2Entry(d models.Descriptor) string {
	var b strings.Builder
	b.WriteString(d.HTTPURL)
	b.WriteString("\n checksum=md5=")
	b.WriteString(d.MD5)
	b.WriteString("\n check-integrity=true")
	b.WriteString("\n out=")
	b.WriteString(d.DownloadPath)
	b.WriteString("\n")
	return b.String()
}

// WriteAria2 writes an aria2 input file, entries separated by blank lines.
func WriteAria2(w io.Writer, descriptors []models.Descriptor) error {
	bw := bufio.NewWriter(w)
	for _, d := range descriptors {
		if _, err := bw.WriteString(Aria2Entry(d) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteJSON writes an indented JSON array. An empty input yields [].
func WriteJSON(w io.Writer, descriptors []models.Descriptor) error {
	if descriptors == nil {
		descriptors = []models.Descriptor{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(descriptors)
}

// WriteJSONL writes one JSON object per line.
func WriteJSONL(w io.Writer, descriptors []models.Descriptor) error {
	enc := json.NewEncoder(w)
	for _, d := range descriptors {
		if err := enc.Encode(d); err != nil {
			return err
		}
	}
	return nil
}

// WriteYAML writes a YAML sequence.
func WriteYAML(w io.Writer, descriptors []models.Descriptor) error {
	if descriptors == nil {
		descriptors = []models.Descriptor{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(descriptors); err != nil {
		return err
	}
	return enc.Close()
}

// TSVHeader is the header row written by WriteTSV.
var TSVHeader = []string{"name", "orig_acc", "run_acc", "http_url", "md5", "ascp_url", "download_path"}

// WriteTSV writes a tab separated table with a header row.
func WriteTSV(w io.Writer, descriptors []models.Descriptor) error {
	tw := csv.NewWriter(w)
	tw.Comma = '\t'

	if err := tw.Write(TSVHeader); err != nil {
		return err
	}
	for _, d := range descriptors {
		row := []string{d.Name, d.OrigAcc, d.RunAcc, d.HTTPURL, d.MD5, d.AsperaURL, d.DownloadPath}
		if err := tw.Write(row); err != nil {
			return err
		}
	}
	tw.Flush()
	return tw.Error()
}
