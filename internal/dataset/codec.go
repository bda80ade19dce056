package dataset

import (
	"bytes"
	"encoding/json"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/atelierhq/atelier-backend/internal/logger"
)

// The dataset travels inside the artifact HTML as one inert JSON block:
//
//	<script type="application/json" id="artifact_dataset"> ... </script>
//
// It is never executed; the artifact iframe is sandboxed without scripts.
const (
	DatasetNodeID = "artifact_dataset"
	MaxBlobBytes  = 150_000

	maxSourceItems     = 50
	maxSourceTextChars = 500
	maxSourceHrefChars = 2000
)

// Source is one entry of an artifact's source list.
type Source struct {
	Title       string `json:"title,omitempty"`
	Text        string `json:"text,omitempty"`
	URL         string `json:"url,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type Extraction struct {
	Blob    *Blob
	Sources []Source
}

// Codec extracts and injects the structured dataset block of an artifact
// document, keeping document and data synchronized.
type Codec struct {
	log *logger.Logger
}

func NewCodec(log *logger.Logger) *Codec {
	c := &Codec{}
	if log != nil {
		c.log = log.With("component", "DatasetCodec")
	}
	return c
}

// Extract pulls the dataset blob and best-effort source list out of artifact
// HTML. Malformed or oversized payloads yield a nil Blob, never an error: a
// bad dataset means "no dataset".
func (c *Codec) Extract(htmlText string) Extraction {
	if strings.TrimSpace(htmlText) == "" {
		return Extraction{}
	}
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		c.logInfo("dataset extract parse failed", "error", err)
		return Extraction{}
	}
	return Extraction{
		Blob:    c.extractBlob(doc),
		Sources: extractSources(doc),
	}
}

func (c *Codec) extractBlob(doc *html.Node) *Blob {
	node := findDatasetNode(doc)
	if node == nil {
		return nil
	}
	raw := strings.TrimSpace(nodeText(node))
	if raw == "" || len(raw) > MaxBlobBytes {
		return nil
	}
	blob, err := Parse([]byte(raw))
	if err != nil {
		c.logInfo("dataset blob rejected", "error", err)
		return nil
	}
	return blob
}

// Inject serializes the blob back into the document's reserved block,
// removing any prior occurrence first so the block is never duplicated.
// On any failure the original HTML is returned unchanged.
func (c *Codec) Inject(htmlText string, blob *Blob) string {
	if strings.TrimSpace(htmlText) == "" || blob == nil {
		return htmlText
	}
	payload, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		c.logInfo("dataset inject marshal failed", "error", err)
		return htmlText
	}
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		c.logInfo("dataset inject parse failed", "error", err)
		return htmlText
	}
	if existing := findDatasetNode(doc); existing != nil {
		existing.Parent.RemoveChild(existing)
	}
	body := findElement(doc, atom.Body)
	if body == nil {
		return htmlText
	}
	node := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Script,
		Data:     "script",
		Attr: []html.Attribute{
			{Key: "type", Val: "application/json"},
			{Key: "id", Val: DatasetNodeID},
		},
	}
	node.AppendChild(&html.Node{Type: html.TextNode, Data: "\n" + string(payload) + "\n"})
	body.AppendChild(node)

	rendered, err := renderDocument(doc)
	if err != nil {
		c.logInfo("dataset inject render failed", "error", err)
		return htmlText
	}
	return rendered
}

func (c *Codec) logInfo(msg string, kv ...interface{}) {
	if c != nil && c.log != nil {
		c.log.Info(msg, kv...)
	}
}

func findDatasetNode(doc *html.Node) *html.Node {
	return findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode &&
			n.DataAtom == atom.Script &&
			attrValue(n, "id") == DatasetNodeID &&
			strings.EqualFold(attrValue(n, "type"), "application/json")
	})
}

func extractSources(doc *html.Node) []Source {
	heading := findNode(doc, func(n *html.Node) bool {
		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4:
			return n.Type == html.ElementNode &&
				strings.EqualFold(strings.TrimSpace(nodeText(n)), "sources")
		default:
			return false
		}
	})
	if heading == nil {
		return nil
	}
	var list *html.Node
	for sib := heading.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type == html.ElementNode && sib.DataAtom == atom.Ul {
			list = sib
			break
		}
	}
	if list == nil {
		return nil
	}
	var out []Source
	for item := list.FirstChild; item != nil && len(out) < maxSourceItems; item = item.NextSibling {
		if item.Type != html.ElementNode || item.DataAtom != atom.Li {
			continue
		}
		text := strings.TrimSpace(nodeText(item))
		if text == "" {
			continue
		}
		text = truncateSourceField(text, maxSourceTextChars)
		src := Source{Text: text}
		if anchor := findNode(item, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.DataAtom == atom.A
		}); anchor != nil {
			href := strings.TrimSpace(attrValue(anchor, "href"))
			href = truncateSourceField(href, maxSourceHrefChars)
			if href != "" && safeScheme(href) {
				src.URL = href
			}
		}
		out = append(out, src)
	}
	return out
}

// truncateSourceField cuts on runes so a multibyte character at the
// boundary never leaves an invalid UTF-8 tail.
func truncateSourceField(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

func safeScheme(href string) bool {
	lower := strings.ToLower(strings.TrimSpace(href))
	for _, bad := range []string{"javascript:", "data:", "vbscript:"} {
		if strings.HasPrefix(lower, bad) {
			return false
		}
	}
	return true
}

func findNode(root *html.Node, match func(*html.Node) bool) *html.Node {
	if root == nil {
		return nil
	}
	if match(root) {
		return root
	}
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if found := findNode(child, match); found != nil {
			return found
		}
	}
	return nil
}

func findElement(root *html.Node, a atom.Atom) *html.Node {
	return findNode(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a
	})
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func renderDocument(doc *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}
