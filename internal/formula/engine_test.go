package formula

import (
	"testing"

	"github.com/atelierhq/atelier-backend/internal/dataset"
)

func row(values ...dataset.Value) []dataset.Value { return values }

func TestEvaluateForRow(t *testing.T) {
	cells := row(dataset.Number(120), dataset.Number(30), dataset.Null())

	tests := []struct {
		name    string
		formula string
		want    float64
		wantErr bool
	}{
		{name: "subtract refs", formula: "A - B", want: 90},
		{name: "add refs", formula: "A + B", want: 150},
		{name: "multiply literal", formula: "B * 2", want: 60},
		{name: "divide", formula: "A / B", want: 4},
		{name: "parens", formula: "(A - B) / 2", want: 45},
		{name: "unary minus", formula: "-A + B", want: -90},
		{name: "decimal literal", formula: "A * 0.5", want: 60},
		{name: "lowercase ref", formula: "a - b", want: 90},
		{name: "divide by zero", formula: "A / 0", wantErr: true},
		{name: "null reference", formula: "A + C", wantErr: true},
		{name: "out of range reference", formula: "A + Z", wantErr: true},
		{name: "double operator", formula: "A + * B", wantErr: true},
		{name: "unbalanced paren", formula: "(A + B", wantErr: true},
		{name: "trailing garbage", formula: "A + B)", wantErr: true},
		{name: "bad number", formula: "1.2.3", wantErr: true},
		{name: "invalid character", formula: "A $ B", wantErr: true},
		{name: "empty formula", formula: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateForRow(tt.formula, cells)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			num, ok := got.Numeric()
			if !ok {
				t.Fatalf("expected numeric result, got %+v", got)
			}
			if num != tt.want {
				t.Fatalf("got %v, want %v", num, tt.want)
			}
		})
	}
}

func TestEvaluateForRowNumericStrings(t *testing.T) {
	cells := row(dataset.String("120"), dataset.String("30.5"))
	got, err := EvaluateForRow("A - B", cells)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	num, _ := got.Numeric()
	if num != 89.5 {
		t.Fatalf("got %v, want 89.5", num)
	}
}

func TestEvaluateForRowRounding(t *testing.T) {
	cells := row(dataset.Number(1), dataset.Number(3))

	got, err := EvaluateForRow("A / B", cells)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	num, _ := got.Numeric()
	if num != 0.333333 {
		t.Fatalf("got %v, want 0.333333 (rounded to 6 places)", num)
	}

	got, err = EvaluateForRow("(A / B) * 3", cells)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	num, _ = got.Numeric()
	if num != 1 {
		t.Fatalf("got %v, want integral 1", num)
	}
}

func sampleBlob() *dataset.Blob {
	return &dataset.Blob{
		Version: 1,
		Datasets: []dataset.Dataset{
			{
				Name:   "Revenue vs Cost",
				Schema: []string{"Revenue", "Cost", "Margin"},
				Rows: [][]dataset.Value{
					{dataset.Number(120), dataset.Number(30), dataset.Null()},
					{dataset.Number(80), dataset.Number(95), dataset.Null()},
				},
				ComputedColumns: []dataset.ComputedColumn{
					{Index: 2, Formula: "A - B"},
				},
			},
		},
	}
}

func TestApplyComputesCells(t *testing.T) {
	out := Apply(sampleBlob())

	rows := out.Datasets[0].Rows
	if got, _ := rows[0][2].Numeric(); got != 90 {
		t.Fatalf("row 0 margin = %v, want 90", got)
	}
	if got, _ := rows[1][2].Numeric(); got != -15 {
		t.Fatalf("row 1 margin = %v, want -15", got)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := sampleBlob()
	Apply(in)
	if in.Datasets[0].Rows[0][2].Kind != dataset.KindNull {
		t.Fatalf("input blob mutated: %+v", in.Datasets[0].Rows[0][2])
	}
}

func TestApplyNullsOnlyFailingRow(t *testing.T) {
	blob := sampleBlob()
	blob.Datasets[0].Rows[1][1] = dataset.String("unknown")

	out := Apply(blob)
	rows := out.Datasets[0].Rows
	if got, _ := rows[0][2].Numeric(); got != 90 {
		t.Fatalf("row 0 margin = %v, want 90", got)
	}
	if rows[1][2].Kind != dataset.KindNull {
		t.Fatalf("row 1 margin should be null, got %+v", rows[1][2])
	}
}

func TestApplyIdempotent(t *testing.T) {
	once := Apply(sampleBlob())
	twice := Apply(once)

	for i, row := range once.Datasets[0].Rows {
		for j := range row {
			if row[j] != twice.Datasets[0].Rows[i][j] {
				t.Fatalf("cell (%d,%d) differs after second apply: %+v vs %+v",
					i, j, row[j], twice.Datasets[0].Rows[i][j])
			}
		}
	}
}

func TestApplySkipsBadComputedColumns(t *testing.T) {
	blob := sampleBlob()
	blob.Datasets[0].ComputedColumns = []dataset.ComputedColumn{
		{Index: -1, Formula: "A + B"},
		{Index: 9, Formula: "A + B"},
		{Index: 2, Formula: "   "},
		{Index: 2, Formula: "A - B"},
		{Index: 2, Formula: "A + B"}, // duplicate index, ignored
	}

	out := Apply(blob)
	if got, _ := out.Datasets[0].Rows[0][2].Numeric(); got != 90 {
		t.Fatalf("expected first valid formula to win, got %v", got)
	}
}
