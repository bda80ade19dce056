package dataset

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Blob is the versioned structured dataset embedded in an artifact document.
type Blob struct {
	Version  int       `json:"version"`
	Datasets []Dataset `json:"datasets"`
}

type Dataset struct {
	Name            string           `json:"name,omitempty"`
	Units           string           `json:"units,omitempty"`
	Schema          []string         `json:"schema"`
	Rows            [][]Value        `json:"rows"`
	ComputedColumns []ComputedColumn `json:"computed_columns,omitempty"`
}

// ComputedColumn declares that one column is derived from a row-level
// formula. The index may arrive as an integer or a spreadsheet letter
// reference ("C"); unparsable entries resolve to -1 and are skipped.
type ComputedColumn struct {
	Index   int
	Formula string
}

func (c ComputedColumn) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Index   int    `json:"index"`
		Formula string `json:"formula"`
	}{Index: c.Index, Formula: c.Formula})
}

func (c *ComputedColumn) UnmarshalJSON(data []byte) error {
	var raw struct {
		Index   json.RawMessage `json:"index"`
		Column  json.RawMessage `json:"column"`
		Formula string          `json:"formula"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Formula = strings.TrimSpace(raw.Formula)
	c.Index = parseColumnRef(raw.Index)
	if c.Index < 0 {
		c.Index = parseColumnRef(raw.Column)
	}
	return nil
}

func parseColumnRef(raw json.RawMessage) int {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return -1
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return -1
		}
		return n
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return -1
	}
	str = strings.TrimSpace(str)
	if n, err := strconv.Atoi(str); err == nil {
		if n < 0 {
			return -1
		}
		return n
	}
	idx, err := ColumnLetterToIndex(str)
	if err != nil {
		return -1
	}
	return idx
}

// ColumnLetterToIndex resolves a spreadsheet column reference to a 0-based
// index: A=0, B=1, ..., Z=25, AA=26.
func ColumnLetterToIndex(ref string) (int, error) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if ref == "" {
		return 0, fmt.Errorf("empty column reference")
	}
	value := 0
	for _, ch := range ref {
		if ch < 'A' || ch > 'Z' {
			return 0, fmt.Errorf("invalid column reference %q", ref)
		}
		value = value*26 + int(ch-'A') + 1
	}
	return value - 1, nil
}

// Validate enforces the blob shape contract: an integer version and a
// non-empty list of datasets, each with a string schema and array rows.
// Cell-level typing is already guaranteed by Value unmarshaling.
func (b *Blob) Validate() error {
	if b == nil {
		return fmt.Errorf("nil dataset blob")
	}
	if b.Version < 1 {
		return fmt.Errorf("dataset blob version must be a positive integer, got %d", b.Version)
	}
	if len(b.Datasets) == 0 {
		return fmt.Errorf("dataset blob has no datasets")
	}
	for i, ds := range b.Datasets {
		if ds.Schema == nil {
			return fmt.Errorf("dataset %d has no schema", i)
		}
		if ds.Rows == nil {
			return fmt.Errorf("dataset %d has no rows", i)
		}
	}
	return nil
}

// Clone deep-copies the blob so recomputation never mutates its input.
func (b *Blob) Clone() *Blob {
	if b == nil {
		return nil
	}
	out := &Blob{Version: b.Version, Datasets: make([]Dataset, len(b.Datasets))}
	for i, ds := range b.Datasets {
		cp := Dataset{
			Name:   ds.Name,
			Units:  ds.Units,
			Schema: append([]string(nil), ds.Schema...),
		}
		cp.Rows = make([][]Value, len(ds.Rows))
		for j, row := range ds.Rows {
			cp.Rows[j] = append([]Value(nil), row...)
		}
		cp.ComputedColumns = append([]ComputedColumn(nil), ds.ComputedColumns...)
		out.Datasets[i] = cp
	}
	return out
}

// Parse decodes and validates a dataset blob from raw JSON.
func Parse(raw []byte) (*Blob, error) {
	var blob Blob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return nil, err
	}
	if err := blob.Validate(); err != nil {
		return nil, err
	}
	return &blob, nil
}
