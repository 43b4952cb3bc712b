// Package csv parses delimited text with a header row into raw records. Every
// value is a string, or nil for an empty field.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"

	"movieetl/internal/parser"
	"movieetl/pkg/records"
)

// Options configures the CSV parser behavior. All fields are optional.
type Options struct {
	// HasHeader indicates whether the first row contains column headers.
	// Without one, columns are named col_0, col_1, ...
	HasHeader bool

	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing white space from each field value.
	TrimSpace bool

	// HeaderMap renames source headers after normalization.
	HeaderMap map[string]string

	// MaxRows stops reading after this many data rows. Zero means no limit.
	MaxRows int
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs, but Parser itself is not concurrency-safe.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

var _ parser.Parser = (*Parser)(nil)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// maxLogged bounds per-row warnings for a single input.
const maxLogged = 20

// Parse reads r up to MaxRows data rows. Short rows are padded with NULL and
// long rows truncated to the header width; both are counted in Result.Ragged.
// Rows the CSV reader cannot decode are skipped and counted; any other read
// error ends the parse.
func (p *Parser) Parse(r io.Reader) (parser.Result, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var res parser.Result
	if p.opt.HasHeader {
		h, err := cr.Read()
		if err == io.EOF {
			return res, errors.New("csv: empty input, header row expected")
		}
		if err != nil {
			return res, errors.Wrap(err, "csv: read header")
		}
		res.Header = normalizeHeaders(h, p.opt)
		if err := checkDuplicates(res.Header); err != nil {
			return res, err
		}
	}

	for line := 1; p.opt.MaxRows <= 0 || len(res.Rows) < p.opt.MaxRows; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return res, errors.Wrapf(err, "csv: read row %d", line)
			}
			if res.Skipped < maxLogged {
				log.Warnf("csv: skipping row %d: %v", line, err)
			}
			res.Skipped++
			continue
		}
		if res.Header == nil {
			res.Header = make([]string, len(row))
			for i := range row {
				res.Header[i] = fmt.Sprintf("col_%d", i)
			}
		}
		if len(row) != len(res.Header) {
			if res.Ragged < maxLogged {
				log.Debugf("csv: row %d has %d fields, header has %d", line, len(row), len(res.Header))
			}
			res.Ragged++
		}

		rec := make(records.Record, len(res.Header))
		for i, key := range res.Header {
			if i >= len(row) {
				rec[key] = nil
				continue
			}
			val := row[i]
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[key] = emptyToNil(val)
		}
		res.Rows = append(res.Rows, rec)
	}
	return res, nil
}

// emptyToNil converts an empty string to nil; all other values are returned as-is.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// normalizeHeaders trims each header, strips a UTF-8 BOM from the first one,
// applies Unicode NFC so visually identical names compare equal, and then
// applies HeaderMap. Case is preserved.
func normalizeHeaders(h []string, opt Options) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		c = norm.NFC.String(c)
		if m, ok := opt.HeaderMap[c]; ok {
			c = m
		}
		if c == "" {
			c = fmt.Sprintf("col_%d", i)
		}
		res[i] = c
	}
	return res
}

func checkDuplicates(h []string) error {
	seen := make(map[string]struct{}, len(h))
	for _, c := range h {
		if _, ok := seen[c]; ok {
			return errors.Errorf("csv: duplicate header %q", c)
		}
		seen[c] = struct{}{}
	}
	return nil
}
