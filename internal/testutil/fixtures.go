package testutil

import (
	"fmt"

	"github.com/nishad/srafetch/internal/models"
)

// Fixture data mirroring real archive answers.

// RunSRR000001 returns the filereport rows for SRR000001: one run with an
// unpaired file plus both mates.
func RunSRR000001() []models.Record {
	const dir = "ftp.sra.ebi.ac.uk/vol1/fastq/SRR000/SRR000001/"
	const fasp = "fasp.sra.ebi.ac.uk:/vol1/fastq/SRR000/SRR000001/"
	return []models.Record{{
		ExperimentAccession: "SRX000001",
		RunAccession:        "SRR000001",
		FastqMD5: "d656237bce7d2153e7d5326653fe950f;" +
			"f9c1d2e5e1f7a0c66c4a2b1b1e6e5d0a;" +
			"2d8d3e0c9b54fe1c4e2a4e3a1b2c3d4e",
		FastqFTP: dir + "SRR000001.fastq.gz;" +
			dir + "SRR000001_1.fastq.gz;" +
			dir + "SRR000001_2.fastq.gz",
		FastqAspera: fasp + "SRR000001.fastq.gz;" +
			fasp + "SRR000001_1.fastq.gz;" +
			fasp + "SRR000001_2.fastq.gz",
	}}
}

// ExperimentSRX2243567 returns the filereport rows for SRX2243567, the SRA
// experiment behind GEO sample GSM2344754.
func ExperimentSRX2243567() []models.Record {
	return []models.Record{{
		ExperimentAccession: "SRX2243567",
		RunAccession:        "SRR4421243",
		FastqMD5:            "325f82703836a7cc6b5fa84687376e86",
		FastqFTP:            "ftp.sra.ebi.ac.uk/vol1/fastq/SRR442/003/SRR4421243/SRR4421243.fastq.gz",
		FastqAspera:         "fasp.sra.ebi.ac.uk:/vol1/fastq/SRR442/003/SRR4421243/SRR4421243.fastq.gz",
	}}
}

// GEOSampleXML returns a MINiML quick view for a sample with the given
// relations, given as alternating type/target pairs.
func GEOSampleXML(gsm string, relations ...string) string {
	rels := ""
	for i := 0; i+1 < len(relations); i += 2 {
		rels += fmt.Sprintf("    <Relation type=%q target=%q />\n", relations[i], relations[i+1])
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<MINiML xmlns="http://www.ncbi.nlm.nih.gov/geo/info/MINiML"
        xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
        version="0.5.0">
  <Sample iid=%q>
    <Status database="GEO">
      <Submission-Date>2016-10-12</Submission-Date>
    </Status>
    <Title>fixture sample</Title>
%s  </Sample>
</MINiML>
`, gsm, rels)
}

// GEOSampleGSM2344754 returns the GEO record of GSM2344754.
func GEOSampleGSM2344754() string {
	return GEOSampleXML("GSM2344754",
		"BioSample", "https://www.ncbi.nlm.nih.gov/biosample/SAMN05915393",
		"SRA", "https://www.ncbi.nlm.nih.gov/sra?term=SRX2243567",
	)
}
