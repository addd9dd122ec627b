package logger

// Standard field names for consistent structured logging across lexgen.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Documents and defs
	FieldNSID = "nsid"
	FieldDef  = "def"
	FieldRef  = "ref"

	// Files and paths
	FieldFile      = "file"
	FieldDir       = "dir"
	FieldOutputDir = "output_dir"

	// Pipeline
	FieldPrefix = "prefix"
	FieldTarget = "target"
	FieldDigest = "digest"

	// Counts and timing
	FieldCount      = "count"
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"
)
