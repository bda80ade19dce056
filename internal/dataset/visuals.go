package dataset

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Deterministic, script-free rendering of the dataset as tables and bar
// charts. The visible presentation is always derived from the authoritative
// blob so it cannot drift from the structured data.
const (
	VisualsNodeID = "artifact_dataset_visuals"

	maxVisualDatasets    = 6
	maxChartsPerDataset  = 4
	maxRowsPerChart      = 40
	maxTableRowsRendered = 60
)

const visualsCSS = `
.artifact-visuals{border:1px solid #e5e7eb;border-radius:12px;padding:16px;margin:16px 0;background:#fff}
.artifact-visuals h2{font-size:14px;line-height:1.3;margin:0 0 10px 0;font-weight:700}
.artifact-visuals .ds{margin-top:14px}
.artifact-visuals .ds h3{font-size:13px;margin:0 0 8px 0;font-weight:700}
.artifact-visuals table{border-collapse:collapse;width:100%;font-size:12px;margin:8px 0}
.artifact-visuals th,.artifact-visuals td{border:1px solid #e5e7eb;padding:4px 8px;text-align:left}
.artifact-visuals th{background:#f9fafb;font-weight:700}
.artifact-visuals .chart{margin-top:10px}
.artifact-visuals .chart-title{font-size:12px;font-weight:700;color:#374151;margin:0 0 8px 0}
.artifact-visuals .bar-row{display:grid;grid-template-columns:minmax(80px,160px) 1fr auto;gap:8px;align-items:center;margin:6px 0}
.artifact-visuals .bar-label{font-size:12px;color:#4b5563;white-space:nowrap;overflow:hidden;text-overflow:ellipsis}
.artifact-visuals .bar-track{height:10px;border-radius:999px;background:#eef2ff;overflow:hidden}
.artifact-visuals .bar-fill{display:block;height:100%;background:linear-gradient(90deg,#3b82f6,#2563eb)}
.artifact-visuals .bar-fill.is-negative{background:linear-gradient(90deg,#f97316,#ea580c)}
.artifact-visuals .bar-value{font-size:12px;color:#374151;font-variant-numeric:tabular-nums}
.artifact-visuals .empty{font-size:12px;color:#6b7280;margin:0}
`

// ApplyVisuals re-renders the tables/charts section from the blob. Any
// previous visuals section is removed first. On failure the original HTML is
// returned unchanged.
func (c *Codec) ApplyVisuals(htmlText string, blob *Blob) string {
	if strings.TrimSpace(htmlText) == "" || blob == nil || len(blob.Datasets) == 0 {
		return htmlText
	}
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		c.logInfo("dataset visuals parse failed", "error", err)
		return htmlText
	}
	if existing := findNodeByID(doc, VisualsNodeID); existing != nil {
		existing.Parent.RemoveChild(existing)
	}
	body := findElement(doc, atom.Body)
	if body == nil {
		return htmlText
	}

	section := elementNode(atom.Section, "section",
		html.Attribute{Key: "id", Val: VisualsNodeID},
		html.Attribute{Key: "class", Val: "artifact-visuals"},
	)
	style := elementNode(atom.Style, "style")
	style.AppendChild(textNode(visualsCSS))
	section.AppendChild(style)

	title := elementNode(atom.H2, "h2")
	title.AppendChild(textNode("Data"))
	section.AppendChild(title)

	rendered := false
	limit := len(blob.Datasets)
	if limit > maxVisualDatasets {
		limit = maxVisualDatasets
	}
	for i := 0; i < limit; i++ {
		if node := renderDataset(blob.Datasets[i], i); node != nil {
			section.AppendChild(node)
			rendered = true
		}
	}
	if !rendered {
		return htmlText
	}
	body.AppendChild(section)

	out, err := renderDocument(doc)
	if err != nil {
		c.logInfo("dataset visuals render failed", "error", err)
		return htmlText
	}
	return out
}

func renderDataset(ds Dataset, index int) *html.Node {
	if len(ds.Schema) == 0 || len(ds.Rows) == 0 {
		return nil
	}
	wrap := elementNode(atom.Div, "div",
		html.Attribute{Key: "class", Val: "ds"},
		html.Attribute{Key: "data-dataset-index", Val: fmt.Sprintf("%d", index)},
	)

	name := strings.TrimSpace(ds.Name)
	if name == "" {
		name = fmt.Sprintf("Dataset %d", index+1)
	}
	if units := strings.TrimSpace(ds.Units); units != "" {
		name = name + " (" + units + ")"
	}
	h3 := elementNode(atom.H3, "h3")
	h3.AppendChild(textNode(name))
	wrap.AppendChild(h3)

	wrap.AppendChild(renderTable(ds))

	numericCols := numericColumnIndexes(ds)
	if len(numericCols) > maxChartsPerDataset {
		numericCols = numericCols[:maxChartsPerDataset]
	}
	labelIdx := labelColumnIndex(len(ds.Schema), numericCols)
	for _, col := range numericCols {
		wrap.AppendChild(renderBarChart(ds, col, labelIdx))
	}
	return wrap
}

func renderTable(ds Dataset) *html.Node {
	table := elementNode(atom.Table, "table")
	head := elementNode(atom.Thead, "thead")
	headRow := elementNode(atom.Tr, "tr")
	for _, col := range ds.Schema {
		th := elementNode(atom.Th, "th")
		th.AppendChild(textNode(col))
		headRow.AppendChild(th)
	}
	head.AppendChild(headRow)
	table.AppendChild(head)

	tbody := elementNode(atom.Tbody, "tbody")
	limit := len(ds.Rows)
	if limit > maxTableRowsRendered {
		limit = maxTableRowsRendered
	}
	for i := 0; i < limit; i++ {
		tr := elementNode(atom.Tr, "tr")
		for col := range ds.Schema {
			td := elementNode(atom.Td, "td")
			if col < len(ds.Rows[i]) {
				td.AppendChild(textNode(ds.Rows[i][col].Display()))
			}
			tr.AppendChild(td)
		}
		tbody.AppendChild(tr)
	}
	table.AppendChild(tbody)
	return table
}

func renderBarChart(ds Dataset, col, labelIdx int) *html.Node {
	chart := elementNode(atom.Div, "div",
		html.Attribute{Key: "class", Val: "chart"},
		html.Attribute{Key: "data-column-index", Val: fmt.Sprintf("%d", col)},
	)
	title := elementNode(atom.P, "p", html.Attribute{Key: "class", Val: "chart-title"})
	columnName := fmt.Sprintf("Column %d", col+1)
	if col < len(ds.Schema) && strings.TrimSpace(ds.Schema[col]) != "" {
		columnName = ds.Schema[col]
	}
	title.AppendChild(textNode(columnName))
	chart.AppendChild(title)

	type point struct {
		label string
		value float64
	}
	var points []point
	limit := len(ds.Rows)
	if limit > maxRowsPerChart {
		limit = maxRowsPerChart
	}
	for i := 0; i < limit; i++ {
		row := ds.Rows[i]
		if col >= len(row) {
			continue
		}
		value, ok := row[col].Numeric()
		if !ok {
			continue
		}
		label := "Row"
		if labelIdx < len(row) {
			if s := strings.TrimSpace(row[labelIdx].Display()); s != "" {
				label = s
			}
		}
		points = append(points, point{label: label, value: value})
	}

	if len(points) == 0 {
		empty := elementNode(atom.P, "p", html.Attribute{Key: "class", Val: "empty"})
		empty.AppendChild(textNode("No numeric values to plot."))
		chart.AppendChild(empty)
		return chart
	}

	maxAbs := 0.0
	for _, p := range points {
		if abs := math.Abs(p.value); abs > maxAbs {
			maxAbs = abs
		}
	}
	if maxAbs <= 0 {
		maxAbs = 1
	}

	for _, p := range points {
		row := elementNode(atom.Div, "div", html.Attribute{Key: "class", Val: "bar-row"})

		label := elementNode(atom.Span, "span", html.Attribute{Key: "class", Val: "bar-label"})
		label.AppendChild(textNode(p.label))
		row.AppendChild(label)

		track := elementNode(atom.Span, "span", html.Attribute{Key: "class", Val: "bar-track"})
		fillClass := "bar-fill"
		if p.value < 0 {
			fillClass = "bar-fill is-negative"
		}
		pct := math.Abs(p.value) / maxAbs * 100
		fill := elementNode(atom.Span, "span",
			html.Attribute{Key: "class", Val: fillClass},
			html.Attribute{Key: "style", Val: fmt.Sprintf("width: %.2f%%", pct)},
		)
		track.AppendChild(fill)
		row.AppendChild(track)

		value := elementNode(atom.Span, "span", html.Attribute{Key: "class", Val: "bar-value"})
		value.AppendChild(textNode(FormatNumber(p.value)))
		row.AppendChild(value)

		chart.AppendChild(row)
	}
	return chart
}

// numericColumnIndexes reports every column where at least one row coerces
// to a number.
func numericColumnIndexes(ds Dataset) []int {
	var out []int
	for col := range ds.Schema {
		for _, row := range ds.Rows {
			if col >= len(row) {
				continue
			}
			if _, ok := row[col].Numeric(); ok {
				out = append(out, col)
				break
			}
		}
	}
	return out
}

// labelColumnIndex picks the first non-numeric column as the label axis,
// falling back to column 0.
func labelColumnIndex(schemaSize int, numericCols []int) int {
	numeric := map[int]bool{}
	for _, c := range numericCols {
		numeric[c] = true
	}
	for col := 0; col < schemaSize; col++ {
		if !numeric[col] {
			return col
		}
	}
	return 0
}

func findNodeByID(root *html.Node, id string) *html.Node {
	return findNode(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && attrValue(n, "id") == id
	})
}

func elementNode(a atom.Atom, name string, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: name, Attr: attrs}
}

func textNode(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}
