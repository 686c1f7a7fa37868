package gdc

// SampleRecord identifies one quantification file and the biological sample
// it belongs to. Produced entirely by the metadata resolver; immutable.
type SampleRecord struct {
	// FileID is the opaque GDC file identifier, unique per file.
	FileID string

	// SampleID is the sample submitter barcode. It becomes the matrix
	// column label, so it must be unique within a group.
	SampleID string

	// FileName is the original file name, used only in diagnostics.
	FileName string

	// SampleType is the GDC sample type ("Primary Tumor", "Solid Tissue
	// Normal", ...), used only for grouping.
	SampleType string

	// ProjectID is the owning project, e.g. "TCGA-THCA".
	ProjectID string
}

// filesQuery is the request body for the GDC files endpoint.
type filesQuery struct {
	Filters andFilter `json:"filters"`
	Fields  string    `json:"fields"`
	Format  string    `json:"format"`
	Size    int       `json:"size"`
}

// andFilter and eqFilter model the two filter node shapes the query needs.
type andFilter struct {
	Op      string     `json:"op"`
	Content []eqFilter `json:"content"`
}

type eqFilter struct {
	Op      string     `json:"op"`
	Content fieldValue `json:"content"`
}

type fieldValue struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// filesResponse mirrors the slice of the GDC response we consume.
type filesResponse struct {
	Data struct {
		Hits []fileHit `json:"hits"`
	} `json:"data"`
}

type fileHit struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	Cases    []struct {
		Project struct {
			ProjectID string `json:"project_id"`
		} `json:"project"`
		Samples []struct {
			SubmitterID string `json:"submitter_id"`
			SampleType  string `json:"sample_type"`
		} `json:"samples"`
	} `json:"cases"`
}
