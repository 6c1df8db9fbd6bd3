package fetch

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sofim-uhk/sofim/internal/extract"
)

// TabularOptions controls header detection.
type TabularOptions struct {
	// HeaderKeywords must all occur (as substrings of normalized column names) in the header row.
	HeaderKeywords []string
	// HeaderScanRows is how many leading rows are searched for the header.
	HeaderScanRows int
	// Encodings are tried in order for delimited files.
	Encodings []string
}

// Column is a table column with its original and normalized name.
type Column struct {
	Name string
	Key  string
}

// Table is a parsed tabular source. Every row has exactly len(Columns) cells.
type Table struct {
	Columns  []Column
	Rows     [][]string
	Encoding string
}

// Index returns the position of the column whose normalized name equals key, or -1.
func (t *Table) Index(key string) int {
	key = NormalizeKey(key)
	for i, c := range t.Columns {
		if c.Key == key {
			return i
		}
	}
	return -1
}

var encodings = map[string]encoding.Encoding{
	"windows-1250": charmap.Windows1250,
	"cp1250":       charmap.Windows1250,
	"iso-8859-2":   charmap.ISO8859_2,
	"latin2":       charmap.ISO8859_2,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"iso-8859-1":   charmap.ISO8859_1,
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadTable parses the tabular file at path. Delimited files are decoded with
// each configured encoding in turn until the expected header is found; .xlsx
// workbooks are read from their first sheet. Failure under every encoding is
// reported as ErrHeaderNotFound.
func ReadTable(path string, opts TabularOptions) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tabular source: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows, err := extract.ReadSheetRows(data)
		if err != nil {
			return nil, err
		}
		t, err := buildTable(rows, opts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		t.Encoding = "xlsx"
		return t, nil
	}
	return ParseDelimited(data, opts)
}

// ParseDelimited decodes and parses delimited text.
func ParseDelimited(data []byte, opts TabularOptions) (*Table, error) {
	var tried []string
	for _, name := range opts.Encodings {
		text, err := decode(data, name)
		if err != nil {
			tried = append(tried, name+" ("+err.Error()+")")
			continue
		}
		records, err := readRecords(text)
		if err != nil {
			tried = append(tried, name+" ("+err.Error()+")")
			continue
		}
		t, err := buildTable(records, opts)
		if err != nil {
			tried = append(tried, name)
			continue
		}
		t.Encoding = strings.ToLower(name)
		return t, nil
	}
	return nil, fmt.Errorf("%w (tried %s)", ErrHeaderNotFound, strings.Join(tried, ", "))
}

func decode(data []byte, name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "utf-8" || name == "utf8" {
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", errors.New("invalid utf-8")
		}
		return string(data), nil
	}
	enc, ok := encodings[name]
	if !ok {
		return "", errors.New("unsupported encoding")
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func readRecords(text string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// sniffDelimiter picks the candidate that occurs most often in the first lines.
func sniffDelimiter(text string) rune {
	candidates := []rune{',', ';', '\t'}
	counts := make(map[rune]int, len(candidates))
	lines := strings.SplitN(text, "\n", 16)
	if len(lines) > 15 {
		lines = lines[:15]
	}
	for _, line := range lines {
		for _, c := range candidates {
			counts[c] += strings.Count(line, string(c))
		}
	}
	best := ','
	for _, c := range candidates {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// buildTable finds the header within the first HeaderScanRows records and
// normalizes the rows beneath it.
func buildTable(records [][]string, opts TabularOptions) (*Table, error) {
	scan := opts.HeaderScanRows
	if scan <= 0 || scan > len(records) {
		scan = len(records)
	}
	header := -1
	for i := 0; i < scan; i++ {
		if headerMatches(records[i], opts.HeaderKeywords) {
			header = i
			break
		}
	}
	if header < 0 {
		return nil, ErrHeaderNotFound
	}

	t := &Table{}
	for i, name := range records[header] {
		name = strings.TrimSpace(name)
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		t.Columns = append(t.Columns, Column{Name: name, Key: NormalizeKey(name)})
	}
	for _, rec := range records[header+1:] {
		row := make([]string, len(t.Columns))
		blank := true
		for i := range row {
			if i < len(rec) {
				row[i] = strings.TrimSpace(rec[i])
			}
			if row[i] != "" {
				blank = false
			}
		}
		if !blank {
			t.Rows = append(t.Rows, row)
		}
	}
	return t, nil
}

func headerMatches(record []string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	keys := make([]string, len(record))
	for i, cell := range record {
		keys[i] = NormalizeKey(cell)
	}
	for _, kw := range keywords {
		kw = NormalizeKey(kw)
		found := false
		for _, k := range keys {
			if strings.Contains(k, kw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// NormalizeKey lowercases s, removes diacritics, treats '_' as a space, and
// collapses whitespace: "Kód_předmětu " becomes "kod predmetu".
func NormalizeKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(strings.ReplaceAll(folded, "_", " "))
	return strings.Join(strings.Fields(folded), " ")
}
