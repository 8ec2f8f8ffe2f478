package models

import (
	"strings"

	"github.com/nishad/srafetch/internal/accession"
)

const (
	// HTTPScheme is prepended to the ENA fastq_ftp paths.
	HTTPScheme = "https://"
	// AsperaUser is prepended to the ENA fastq_aspera paths.
	AsperaUser = "era-fasp@"
)

// Record is one read_run row returned by the ENA filereport endpoint.
// The three file fields are ';' separated, one entry per physical file.
type Record struct {
	ExperimentAccession string `json:"experiment_accession"`
	RunAccession        string `json:"run_accession"`
	FastqMD5            string `json:"fastq_md5"`
	FastqFTP            string `json:"fastq_ftp"`
	FastqAspera         string `json:"fastq_aspera"`
}

// Descriptor is one downloadable file.
type Descriptor struct {
	Name         string `json:"name,omitempty" yaml:"name,omitempty" db:"name"`
	OrigAcc      string `json:"orig_acc" yaml:"orig_acc" db:"orig_acc"`
	RunAcc       string `json:"run_acc" yaml:"run_acc" db:"run_acc"`
	HTTPURL      string `json:"http_url" yaml:"http_url" db:"http_url"`
	MD5          string `json:"md5" yaml:"md5" db:"md5"`
	AsperaURL    string `json:"ascp_url" yaml:"ascp_url" db:"ascp_url"`
	DownloadPath string `json:"download_path" yaml:"download_path" db:"download_path"`
}

// NewDescriptor builds a descriptor and derives its download path.
func NewDescriptor(name, origAcc, runAcc, httpURL, md5, asperaURL string) Descriptor {
	return Descriptor{
		Name:         name,
		OrigAcc:      origAcc,
		RunAcc:       runAcc,
		HTTPURL:      httpURL,
		MD5:          md5,
		AsperaURL:    asperaURL,
		DownloadPath: DownloadPath(name, origAcc, runAcc, httpURL),
	}
}

// DownloadPath returns name/<file> when a name is given and
// origAcc/runAcc/<file> otherwise, <file> being the last URL segment.
func DownloadPath(name, origAcc, runAcc, httpURL string) string {
	file := httpURL[strings.LastIndex(httpURL, "/")+1:]
	if name != "" {
		return name + "/" + file
	}
	return origAcc + "/" + runAcc + "/" + file
}

// Expand turns records into one descriptor per physical file, in record
// order and then field order. Fields of unequal length are zipped up to the
// shortest one; the surplus entries are dropped.
func Expand(acc accession.Accession, records []Record) []Descriptor {
	var out []Descriptor
	for _, rec := range records {
		md5s := strings.Split(rec.FastqMD5, ";")
		ftps := strings.Split(rec.FastqFTP, ";")
		ascps := strings.Split(rec.FastqAspera, ";")

		n := min(len(md5s), len(ftps), len(ascps))
		for i := 0; i < n; i++ {
			// runs without FASTQ come back with empty file fields
			if ftps[i] == "" {
				continue
			}
			out = append(out, NewDescriptor(
				acc.Name,
				acc.Code,
				rec.RunAccession,
				HTTPScheme+ftps[i],
				md5s[i],
				AsperaUser+ascps[i],
			))
		}
	}
	return out
}

// Aligned reports whether the record's file fields have matching lengths.
func (r Record) Aligned() bool {
	n := strings.Count(r.FastqFTP, ";")
	return strings.Count(r.FastqMD5, ";") == n && strings.Count(r.FastqAspera, ";") == n
}
