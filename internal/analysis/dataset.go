// Package analysis turns uploaded files and database tables into sources:
// it parses the raw data, infers a typed schema and spots lookup tables that
// should feed the translator registry.
package analysis

import (
	"bytes"
	"encoding/csv"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/project-euler/queryassist/internal/models"
)

var (
	ErrEmptyDataset      = errors.New("dataset has no rows")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Format is the encoding of an imported file
type Format string

const (
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatPostgres Format = "postgres"
)

// Dataset is parsed data before it becomes a source
type Dataset struct {
	Name     string
	FileName string
	Format   Format
	Headers  []string
	Rows     []models.Row
}

// FormatFromFileName picks the parser from the extension
func FormatFromFileName(fileName string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", errors.Wrapf(ErrUnsupportedFormat, "%q", fileName)
}

// Parse reads a file body in the format its name implies
func Parse(fileName string, data []byte) (*Dataset, error) {
	format, err := FormatFromFileName(fileName)
	if err != nil {
		return nil, err
	}

	var headers []string
	var rows []models.Row
	switch format {
	case FormatCSV:
		headers, rows, err = ParseCSV(data)
	case FormatJSON:
		headers, rows, err = ParseJSON(data)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", fileName)
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(ErrEmptyDataset, "%s", fileName)
	}
	return &Dataset{
		Name:     DisplayName(fileName),
		FileName: fileName,
		Format:   format,
		Headers:  headers,
		Rows:     rows,
	}, nil
}

var titleCaser = cases.Title(language.English)

// DisplayName turns "uploads/loan_book-2024.csv" into "Loan Book 2024"
func DisplayName(fileName string) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	return titleCaser.String(strings.Join(strings.Fields(base), " "))
}

// ParseCSV reads a header line and records. Files that come out as a single
// column holding semicolons are read again with ';' as the separator.
func ParseCSV(data []byte) ([]string, []models.Row, error) {
	headers, records, err := readCSV(data, ',')
	if err != nil || (len(headers) == 1 && strings.Contains(headers[0], ";")) {
		headers, records, err = readCSV(data, ';')
	}
	if err != nil {
		return nil, nil, err
	}

	rows := make([]models.Row, 0, len(records))
	for _, rec := range records {
		if isBlankRecord(rec) {
			continue
		}
		row := make(models.Row, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}

func readCSV(data []byte, comma rune) ([]string, [][]string, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrEmptyDataset
		}
		return nil, nil, errors.Wrap(err, "read header")
	}
	headers = cleanHeaders(headers)

	var records [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// malformed lines are skipped
			continue
		}
		records = append(records, rec)
	}
	return headers, records, nil
}

// cleanHeaders trims names and makes blanks and duplicates addressable
func cleanHeaders(headers []string) []string {
	out := make([]string, len(headers))
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Column"
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = h + "_" + strconv.Itoa(n+1)
		} else {
			seen[h] = 1
		}
		out[i] = h
	}
	return out
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ParseJSON reads an array of flat objects. Headers follow first appearance;
// nested values are kept as their raw JSON text.
func ParseJSON(data []byte) ([]string, []models.Row, error) {
	if !gjson.ValidBytes(data) {
		return nil, nil, errors.New("malformed JSON")
	}
	root := gjson.ParseBytes(data)
	if root.IsObject() {
		// {"rows": [...]} or {"data": [...]}
		for _, key := range []string{"rows", "data", "records"} {
			if inner := root.Get(key); inner.IsArray() {
				root = inner
				break
			}
		}
	}
	if !root.IsArray() {
		return nil, nil, errors.New("JSON dataset must be an array of objects")
	}

	var headers []string
	seen := make(map[string]bool)
	var rows []models.Row
	var bad error

	root.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			bad = errors.Newf("row %d is not an object", len(rows)+1)
			return false
		}
		row := models.Row{}
		item.ForEach(func(k, v gjson.Result) bool {
			key := k.String()
			if !seen[key] {
				seen[key] = true
				headers = append(headers, key)
			}
			row[key] = jsonValue(v)
			return true
		})
		rows = append(rows, row)
		return true
	})
	if bad != nil {
		return nil, nil, bad
	}
	return headers, rows, nil
}

func jsonValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.Number:
		return v.Float()
	case gjson.String:
		return v.String()
	case gjson.True, gjson.False:
		return v.Bool()
	}
	return v.Raw
}
