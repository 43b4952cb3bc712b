// Package parser defines the contract shared by input format parsers.
package parser

import (
	"io"

	"movieetl/pkg/records"
)

// Result is the raw content of one input: its column names in order and one
// record per data row.
type Result struct {
	Header []string
	Rows   []records.Record
	// Skipped counts rows that could not be decoded.
	Skipped int
	// Ragged counts rows whose width differed from the header.
	Ragged int
}

type Parser interface {
	Parse(r io.Reader) (Result, error)
}
