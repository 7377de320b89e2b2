package domain

// MetadataRow is a single image reference projected out of an input
// metadata table. Instances are immutable once read; the projected
// fields are carried verbatim into the output row of a kept image.
type MetadataRow struct {
	URL     string // required; rows without a URL are skipped at the source
	Text    string // caption, may be empty
	Width   int    // declared width in pixels, 0 when absent or invalid
	Height  int    // declared height in pixels, 0 when absent or invalid
	License string // may be empty
}

// Image is the payload of a successfully fetched and decoded image.
type Image struct {
	Bytes  []byte
	Hash   string // BLAKE2b-128 hex digest of Bytes
	Format string // normalized decode format (jpg, png, gif, webp)
	Width  int    // decoded width in pixels
	Height int    // decoded height in pixels
}

// OutputRow is one record of the output table. Rows are written once and
// never updated. Field order mirrors the table layout the catalog
// renderer depends on.
type OutputRow struct {
	Size           int64  `parquet:"size"`
	Width          int32  `parquet:"width"`
	Height         int32  `parquet:"height"`
	OriginalWidth  int32  `parquet:"original_width"`
	OriginalHeight int32  `parquet:"original_height"`
	URL            string `parquet:"url"`
	Text           string `parquet:"text"`
	LocalPath      string `parquet:"local_path"`
	License        string `parquet:"license"`
	Hash           string `parquet:"hash"`
}
