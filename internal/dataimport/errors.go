package dataimport

import "errors"

// Validation failures reported to the user before any mapping happens.
var (
	ErrEmptyHeader          = errors.New("csv has no header row")
	ErrNoDataRows           = errors.New("csv has a header but no data rows")
	ErrUnrecognizedFileType = errors.New("file is not a csv (expected .csv extension or csv content type)")
)
