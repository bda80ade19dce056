package dataset

import (
	"strings"
	"testing"
	"unicode/utf8"
)

const sampleBlobJSON = `{
  "version": 1,
  "datasets": [
    {
      "name": "Quarterly revenue",
      "units": "USD",
      "schema": ["Quarter", "Revenue", "Cost", "Margin"],
      "rows": [
        ["Q1", 120, 30, null],
        ["Q2", 80, 95, null]
      ],
      "computed_columns": [
        {"index": "D", "formula": "B - C"}
      ]
    }
  ]
}`

func sampleHTML(blobJSON string) string {
	var b strings.Builder
	b.WriteString("<h2>Quarterly report</h2><p>Revenue held up in Q1.</p>")
	if blobJSON != "" {
		b.WriteString(`<script type="application/json" id="artifact_dataset">`)
		b.WriteString(blobJSON)
		b.WriteString(`</script>`)
	}
	return b.String()
}

func TestExtractBlob(t *testing.T) {
	c := NewCodec(nil)

	got := c.Extract(sampleHTML(sampleBlobJSON))
	if got.Blob == nil {
		t.Fatalf("expected a blob")
	}
	ds := got.Blob.Datasets[0]
	if ds.Name != "Quarterly revenue" || ds.Units != "USD" {
		t.Fatalf("unexpected dataset header: %+v", ds)
	}
	if len(ds.Rows) != 2 || len(ds.Rows[0]) != 4 {
		t.Fatalf("unexpected rows: %+v", ds.Rows)
	}
	if ds.Rows[0][0] != String("Q1") {
		t.Fatalf("cell (0,0) = %+v, want string Q1", ds.Rows[0][0])
	}
	if ds.Rows[0][1] != Number(120) {
		t.Fatalf("cell (0,1) = %+v, want number 120", ds.Rows[0][1])
	}
	if !ds.Rows[0][3].IsNull() {
		t.Fatalf("cell (0,3) should be null")
	}
	if len(ds.ComputedColumns) != 1 || ds.ComputedColumns[0].Index != 3 {
		t.Fatalf("letter column ref not resolved: %+v", ds.ComputedColumns)
	}
}

func TestExtractFailClosed(t *testing.T) {
	c := NewCodec(nil)

	tests := []struct {
		name string
		html string
	}{
		{name: "no node", html: sampleHTML("")},
		{name: "empty payload", html: sampleHTML("   ")},
		{name: "invalid json", html: sampleHTML(`{"version": 1,`)},
		{name: "wrong shape", html: sampleHTML(`{"version": 1, "datasets": "nope"}`)},
		{name: "no datasets", html: sampleHTML(`{"version": 1, "datasets": []}`)},
		{name: "oversized payload", html: sampleHTML(`{"version": 1, "datasets": [{"name": "` + strings.Repeat("x", MaxBlobBytes) + `", "schema": ["A"], "rows": []}]}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Extract(tt.html); got.Blob != nil {
				t.Fatalf("expected no blob, got %+v", got.Blob)
			}
		})
	}
}

func TestInjectExtractRoundTrip(t *testing.T) {
	c := NewCodec(nil)

	blob, err := Parse([]byte(sampleBlobJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	out := c.Inject(sampleHTML(""), blob)
	if !strings.Contains(out, `id="artifact_dataset"`) {
		t.Fatalf("injected node missing: %s", out)
	}
	if !strings.Contains(out, "Revenue held up in Q1.") {
		t.Fatalf("prose dropped during inject: %s", out)
	}

	back := c.Extract(out)
	if back.Blob == nil {
		t.Fatalf("round trip lost the blob")
	}
	if len(back.Blob.Datasets) != 1 {
		t.Fatalf("round trip dataset count = %d", len(back.Blob.Datasets))
	}
	ds := back.Blob.Datasets[0]
	orig := blob.Datasets[0]
	if ds.Name != orig.Name || len(ds.Rows) != len(orig.Rows) {
		t.Fatalf("round trip changed dataset: %+v", ds)
	}
	for i := range orig.Rows {
		for j := range orig.Rows[i] {
			if ds.Rows[i][j] != orig.Rows[i][j] {
				t.Fatalf("cell (%d,%d) changed: %+v vs %+v", i, j, ds.Rows[i][j], orig.Rows[i][j])
			}
		}
	}
}

func TestInjectReplacesExistingNode(t *testing.T) {
	c := NewCodec(nil)

	blob, err := Parse([]byte(sampleBlobJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	blob.Datasets[0].Name = "Updated"

	out := c.Inject(sampleHTML(sampleBlobJSON), blob)
	if strings.Count(out, `id="artifact_dataset"`) != 1 {
		t.Fatalf("expected exactly one dataset node: %s", out)
	}
	back := c.Extract(out)
	if back.Blob == nil || back.Blob.Datasets[0].Name != "Updated" {
		t.Fatalf("old payload survived inject: %+v", back.Blob)
	}
}

func TestExtractSources(t *testing.T) {
	c := NewCodec(nil)

	htmlText := sampleHTML(sampleBlobJSON) + `
<h2>Sources</h2>
<ul>
  <li><a href="https://example.com/report">Annual report</a> Example Corp</li>
  <li>Industry survey, 2025</li>
  <li><a href="javascript:alert(1)">Bad link</a></li>
</ul>`

	got := c.Extract(htmlText)
	if len(got.Sources) != 3 {
		t.Fatalf("sources = %d, want 3", len(got.Sources))
	}
	if got.Sources[0].URL != "https://example.com/report" {
		t.Fatalf("source 0 url = %q", got.Sources[0].URL)
	}
	if got.Sources[1].URL != "" {
		t.Fatalf("source 1 should have no url, got %q", got.Sources[1].URL)
	}
	if got.Sources[2].URL != "" {
		t.Fatalf("unsafe scheme kept: %q", got.Sources[2].URL)
	}
}

func TestExtractSourcesTruncatesOnRunes(t *testing.T) {
	c := NewCodec(nil)

	long := strings.Repeat("Bevölkerungsstatistik Österreich ", 30)
	htmlText := sampleHTML(sampleBlobJSON) + `
<h2>Sources</h2>
<ul>
  <li>` + long + `</li>
</ul>`

	got := c.Extract(htmlText)
	if len(got.Sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(got.Sources))
	}
	text := got.Sources[0].Text
	if !utf8.ValidString(text) {
		t.Fatalf("truncated source text is not valid UTF-8: %q", text)
	}
	if n := len([]rune(text)); n != maxSourceTextChars {
		t.Fatalf("source text runes = %d, want %d", n, maxSourceTextChars)
	}
}

func TestHardenLinks(t *testing.T) {
	c := NewCodec(nil)

	in := `<p><a href="https://example.com">ok</a>` +
		`<a href="javascript:alert(1)">bad</a>` +
		`<a href="/relative">rel</a></p>`
	out := c.HardenLinks(in)

	if !strings.Contains(out, `href="https://example.com"`) {
		t.Fatalf("safe href dropped: %s", out)
	}
	if strings.Contains(out, "javascript:") {
		t.Fatalf("unsafe href kept: %s", out)
	}
	if !strings.Contains(out, `href="/relative"`) {
		t.Fatalf("relative href dropped: %s", out)
	}
	if strings.Count(out, `target="_blank"`) != 3 {
		t.Fatalf("expected target=_blank on every anchor: %s", out)
	}
	if !strings.Contains(out, "noopener") || !strings.Contains(out, "noreferrer") {
		t.Fatalf("rel hardening missing: %s", out)
	}
}

func TestApplyVisuals(t *testing.T) {
	c := NewCodec(nil)

	blob, err := Parse([]byte(sampleBlobJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	blob.Datasets[0].Rows[0][3] = Number(90)
	blob.Datasets[0].Rows[1][3] = Number(-15)

	out := c.ApplyVisuals(sampleHTML(""), blob)
	if !strings.Contains(out, `id="artifact_dataset_visuals"`) {
		t.Fatalf("visuals section missing: %s", out)
	}
	if !strings.Contains(out, "bar-fill") {
		t.Fatalf("bar chart missing: %s", out)
	}
	if !strings.Contains(out, "is-negative") {
		t.Fatalf("negative bar class missing: %s", out)
	}

	// Re-applying replaces the section instead of stacking a second one.
	again := c.ApplyVisuals(out, blob)
	if strings.Count(again, `id="artifact_dataset_visuals"`) != 1 {
		t.Fatalf("visuals section duplicated")
	}
}

func TestColumnLetterToIndex(t *testing.T) {
	tests := []struct {
		ref     string
		want    int
		wantErr bool
	}{
		{ref: "A", want: 0},
		{ref: "Z", want: 25},
		{ref: "AA", want: 26},
		{ref: "c", want: 2},
		{ref: "", wantErr: true},
		{ref: "A1", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ColumnLetterToIndex(tt.ref)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ColumnLetterToIndex(%q): expected error", tt.ref)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ColumnLetterToIndex(%q) = %d, %v; want %d", tt.ref, got, err, tt.want)
		}
	}
}
