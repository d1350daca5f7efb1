// Package csvdec decodes user-supplied contact CSVs into ordered field maps.
//
// Files arrive in whatever encoding and delimiter the user's spreadsheet
// exported, so decoding runs two probes before the real parse: an encoding
// probe (UTF-8 first, legacy single-byte charsets as fallbacks) and a
// delimiter probe over `;`, `,` and tab. Row order is preserved end to end —
// row hashes and issue keys depend on it.
package csvdec

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Result is the decoded file: one map per data row, keyed by trimmed header
// name, plus the encoding and delimiter the probes settled on.
type Result struct {
	Rows      []map[string]string
	Encoding  string
	Delimiter rune
}

// delimiterCandidates is the probe order. Semicolon first: European
// spreadsheet exports use it and a comma probe would happily split their
// decimal values.
var delimiterCandidates = []rune{';', ',', '\t'}

// encodingCandidates is the probe order for charset detection. Latin-1
// accepts any byte sequence, so the entries after it are reachable only if
// an earlier decoder returns an error; they are kept as explicit fallbacks.
var encodingCandidates = []struct {
	name string
	cm   *charmap.Charmap
}{
	{"utf-8", nil},
	{"latin-1", charmap.ISO8859_1},
	{"cp1252", charmap.Windows1252},
	{"iso-8859-1", charmap.ISO8859_1},
	{"windows-1252", charmap.Windows1252},
}

// Decode turns raw file bytes into cleaned, ordered rows.
func Decode(data []byte) (*Result, error) {
	text, encName, err := decodeCharset(data)
	if err != nil {
		return nil, err
	}

	delim := probeDelimiter(text)

	rows, err := parseRows(text, delim)
	if err != nil {
		return nil, err
	}

	return &Result{Rows: rows, Encoding: encName, Delimiter: delim}, nil
}

// decodeCharset tries each candidate encoding in order and returns the first
// clean decode.
func decodeCharset(data []byte) (string, string, error) {
	for _, cand := range encodingCandidates {
		if cand.cm == nil {
			if utf8.Valid(data) {
				return string(data), cand.name, nil
			}
			continue
		}
		decoded, err := cand.cm.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		return string(decoded), cand.name, nil
	}
	return "", "", fmt.Errorf("csvdec: no candidate encoding decodes the file")
}

// probeDelimiter tries each candidate delimiter against the header and first
// data row. A candidate is accepted when (a) it split the header into more
// than one column, (b) the first row has at least one non-empty value, and
// (c) no column name contains a different candidate delimiter — the guard
// that keeps a single-column file from being read as semicolon-delimited.
// If no candidate passes, comma wins.
func probeDelimiter(text string) rune {
	for _, cand := range delimiterCandidates {
		header, first, err := readHeaderAndFirstRow(text, cand)
		if err != nil {
			continue
		}

		if len(header) <= 1 {
			continue
		}

		hasValue := false
		for _, v := range first {
			if strings.TrimSpace(v) != "" {
				hasValue = true
				break
			}
		}
		if !hasValue {
			continue
		}

		if headerContainsOtherDelimiter(header, cand) {
			continue
		}

		return cand
	}
	return ','
}

func readHeaderAndFirstRow(text string, delim rune) ([]string, []string, error) {
	r := newReader(text, delim)

	header, err := r.Read()
	if err != nil {
		return nil, nil, err
	}
	first, err := r.Read()
	if err != nil {
		return nil, nil, err
	}
	return header, first, nil
}

func headerContainsOtherDelimiter(header []string, delim rune) bool {
	for _, name := range header {
		for _, other := range delimiterCandidates {
			if other == delim {
				continue
			}
			if strings.ContainsRune(name, other) {
				return true
			}
		}
	}
	return false
}

// parseRows reads the full file with the chosen delimiter and applies row
// cleanup: columns with blank headers are dropped (trailing delimiters such
// as "a;b;;" produce them), keys and values are trimmed, and rows whose
// values are all empty are discarded.
func parseRows(text string, delim rune) ([]map[string]string, error) {
	r := newReader(text, delim)

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csvdec: read header: %w", err)
	}

	var rows []map[string]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvdec: read row: %w", err)
		}

		row := make(map[string]string, len(header))
		empty := true
		for i, name := range header {
			key := strings.TrimSpace(name)
			if key == "" {
				continue
			}
			var value string
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			if value != "" {
				empty = false
			}
			row[key] = value
		}
		if empty {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func newReader(text string, delim rune) *csv.Reader {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r
}
