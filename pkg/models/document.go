package models

// Document is one indexed catalog file. Description is the text that gets
// embedded for semantic search.
type Document struct {
	ID           string              `json:"id"`
	FilePath     string              `json:"file_path"`
	FileName     string              `json:"file_name"`
	FileType     string              `json:"file_type"`
	SizeBytes    int64               `json:"size_bytes"`
	ModifiedTS   int64               `json:"modified_ts"`
	IndexedTS    int64               `json:"indexed_ts"`
	Source       string              `json:"source,omitempty"`
	Columns      []string            `json:"columns,omitempty"`
	ColumnDescs  map[string]string   `json:"column_descriptions,omitempty"`
	SampleRows   []map[string]string `json:"sample_rows,omitempty"`
	RowCount     int                 `json:"row_count,omitempty"`
	Description  string              `json:"description"`
}

// DatasetInfo is the schema-centric view of a Document served by the
// datasets listing.
type DatasetInfo struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	FileType    string            `json:"file_type"`
	Columns     []string          `json:"columns"`
	ColumnDescs map[string]string `json:"column_descriptions,omitempty"`
	RowCount    int               `json:"row_count,omitempty"`
	SizeBytes   int64             `json:"size_bytes"`
	Source      string            `json:"source,omitempty"`
	Description string            `json:"description,omitempty"`
	Modified    string            `json:"modified"`
}

// FileInfo is the compact listing record for the files endpoints.
type FileInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
}
