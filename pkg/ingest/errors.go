package ingest

import "errors"

// ErrEmptyFile reports a spool file with no records to ingest.
var ErrEmptyFile = errors.New("file contains no records")

// FailureClass labels why a file could not be ingested. The values appear
// in per-file logs and in pass summaries.
type FailureClass string

const (
	// FailNone marks a successful outcome.
	FailNone FailureClass = ""
	// FailEmptyFile marks a file with no content.
	FailEmptyFile FailureClass = "empty_file"
	// FailParse marks a file that could not be read or decoded.
	FailParse FailureClass = "parse"
	// FailMissingDataID marks a record without a usable DataId.
	FailMissingDataID FailureClass = "missing_data_id"
	// FailValidation marks a record rejected by a sanity check.
	FailValidation FailureClass = "validation"
	// FailSinkWrite marks a batch the sink refused. The file stays
	// eligible for a retry after being moved aside.
	FailSinkWrite FailureClass = "sink_write"
	// FailRelocation marks a file whose batch committed but whose move to
	// the done directory failed. Its records are in the database and will
	// be written again when the file is re-ingested.
	FailRelocation FailureClass = "relocation"
	// FailPanic marks a worker that crashed mid-file. The file stays in
	// place untouched.
	FailPanic FailureClass = "panic"
)
