// Package hocr parses the hOCR markup produced by ocr.Engine.HOCRText into
// a page, area, paragraph, line and word tree.
//
// Tesseract emits a fragment (no html or body element) whose elements carry
// their geometry in the title attribute, for example
//
//	<span class='ocrx_word' id='word_1_1' title='bbox 36 92 96 116; x_wconf 90'>Hello</span>
//
// Parse accepts both fragments and complete documents. Elements that appear
// without their usual parent are wrapped in an implicit parent with an empty
// ID, so every word is reachable through Pages.
package hocr

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Class names recognized by the parser.
const (
	ClassPage      = "ocr_page"
	ClassArea      = "ocr_carea"
	ClassParagraph = "ocr_par"
	ClassLine      = "ocr_line"
	ClassWord      = "ocrx_word"
)

// Line-like classes Tesseract uses for headings, captions and floating text.
var lineClasses = map[string]bool{
	ClassLine:       true,
	"ocr_header":    true,
	"ocr_caption":   true,
	"ocr_textfloat": true,
}

// BBox is an hOCR bounding box in page pixels. X2 and Y2 are exclusive.
type BBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns X2 - X1.
func (b BBox) Width() int { return b.X2 - b.X1 }

// Height returns Y2 - Y1.
func (b BBox) Height() int { return b.Y2 - b.Y1 }

// Document is a parsed hOCR document.
type Document struct {
	Pages []Page `json:"pages"`
}

// Page corresponds to an ocr_page element.
type Page struct {
	ID     string `json:"id,omitempty"`
	Image  string `json:"image,omitempty"`
	Number int    `json:"number"`
	BBox   BBox   `json:"bbox"`
	Areas  []Area `json:"areas"`

	// Properties holds the remaining title properties (scan_res, ...).
	Properties map[string]string `json:"properties,omitempty"`
}

// Area corresponds to an ocr_carea element.
type Area struct {
	ID         string      `json:"id,omitempty"`
	BBox       BBox        `json:"bbox"`
	Paragraphs []Paragraph `json:"paragraphs"`
}

// Paragraph corresponds to an ocr_par element.
type Paragraph struct {
	ID    string `json:"id,omitempty"`
	Lang  string `json:"lang,omitempty"`
	Dir   string `json:"dir,omitempty"`
	BBox  BBox   `json:"bbox"`
	Lines []Line `json:"lines"`
}

// Line corresponds to an ocr_line element or one of its variants.
type Line struct {
	ID    string `json:"id,omitempty"`
	Class string `json:"class"`
	BBox  BBox   `json:"bbox"`

	// Baseline is the slope and the offset from the bottom of BBox.
	Baseline [2]float64 `json:"baseline"`
	XSize    float64    `json:"x_size,omitempty"`
	Words    []Word     `json:"words"`
}

// Word corresponds to an ocrx_word element.
type Word struct {
	ID         string  `json:"id,omitempty"`
	Text       string  `json:"text"`
	Lang       string  `json:"lang,omitempty"`
	BBox       BBox    `json:"bbox"`
	Confidence float64 `json:"confidence"`
	Bold       bool    `json:"bold,omitempty"`
	Italic     bool    `json:"italic,omitempty"`
	FontSize   float64 `json:"font_size,omitempty"`
}

// Parse reads hOCR markup.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse hOCR: %w", err)
	}
	p := &parser{doc: &Document{}}
	if err := p.walk(root, scope{}); err != nil {
		return nil, err
	}
	return p.doc, nil
}

// ParseString parses hOCR markup held in a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// ParseTitle splits an hOCR title attribute into properties. Each
// property is a name followed by its value, separated by semicolons.
// Quoted values are unquoted.
func ParseTitle(title string) map[string]string {
	props := make(map[string]string)
	for _, part := range strings.Split(title, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, " ")
		value = strings.TrimSpace(value)
		if uq, err := strconv.Unquote(value); err == nil {
			value = uq
		}
		props[name] = value
	}
	return props
}

// ParseBBox parses a "x1 y1 x2 y2" bbox value.
func ParseBBox(s string) (BBox, error) {
	f := strings.Fields(s)
	if len(f) != 4 {
		return BBox{}, fmt.Errorf("bbox %q: want 4 values", s)
	}
	var v [4]int
	for i, field := range f {
		n, err := strconv.Atoi(field)
		if err != nil {
			return BBox{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = n
	}
	return BBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}, nil
}

// scope holds the innermost open container at each level. A nil field
// means that level is not open.
type scope struct {
	page *Page
	area *Area
	par  *Paragraph
	line *Line
	lang string
}

type parser struct {
	doc *Document
}

func (p *parser) walk(n *html.Node, sc scope) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if err := p.element(c, sc); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) element(n *html.Node, sc scope) error {
	class := classOf(n)
	if lang := attr(n, "lang"); lang != "" {
		sc.lang = lang
	}

	switch {
	case class == ClassPage:
		page := Page{ID: attr(n, "id")}
		props := ParseTitle(attr(n, "title"))
		if err := setBBox(&page.BBox, props, n); err != nil {
			return err
		}
		page.Image = props["image"]
		if v, ok := props["ppageno"]; ok {
			page.Number, _ = strconv.Atoi(v)
		}
		delete(props, "bbox")
		delete(props, "image")
		delete(props, "ppageno")
		if len(props) > 0 {
			page.Properties = props
		}
		sc.page, sc.area, sc.par, sc.line = &page, nil, nil, nil
		if err := p.walk(n, sc); err != nil {
			return err
		}
		p.doc.Pages = append(p.doc.Pages, page)

	case class == ClassArea:
		area := Area{ID: attr(n, "id")}
		if err := setBBox(&area.BBox, ParseTitle(attr(n, "title")), n); err != nil {
			return err
		}
		inner := sc
		inner.area, inner.par, inner.line = &area, nil, nil
		if err := p.walk(n, inner); err != nil {
			return err
		}
		p.addArea(sc, area)

	case class == ClassParagraph:
		par := Paragraph{ID: attr(n, "id"), Lang: sc.lang, Dir: attr(n, "dir")}
		if err := setBBox(&par.BBox, ParseTitle(attr(n, "title")), n); err != nil {
			return err
		}
		inner := sc
		inner.par, inner.line = &par, nil
		if err := p.walk(n, inner); err != nil {
			return err
		}
		p.addParagraph(sc, par)

	case lineClasses[class]:
		line := Line{ID: attr(n, "id"), Class: class}
		props := ParseTitle(attr(n, "title"))
		if err := setBBox(&line.BBox, props, n); err != nil {
			return err
		}
		if f := strings.Fields(props["baseline"]); len(f) == 2 {
			line.Baseline[0], _ = strconv.ParseFloat(f[0], 64)
			line.Baseline[1], _ = strconv.ParseFloat(f[1], 64)
		}
		if v, ok := props["x_size"]; ok {
			line.XSize, _ = strconv.ParseFloat(v, 64)
		}
		inner := sc
		inner.line = &line
		if err := p.walk(n, inner); err != nil {
			return err
		}
		p.addLine(sc, line)

	case class == ClassWord:
		word := Word{ID: attr(n, "id"), Lang: sc.lang}
		props := ParseTitle(attr(n, "title"))
		if err := setBBox(&word.BBox, props, n); err != nil {
			return err
		}
		if v, ok := props["x_wconf"]; ok {
			word.Confidence, _ = strconv.ParseFloat(v, 64)
		}
		if v, ok := props["x_fsize"]; ok {
			word.FontSize, _ = strconv.ParseFloat(v, 64)
		}
		var text strings.Builder
		collectText(n, &text, &word)
		word.Text = strings.TrimSpace(text.String())
		p.addWord(sc, word)

	default:
		return p.walk(n, sc)
	}
	return nil
}

func (p *parser) addWord(sc scope, w Word) {
	if sc.line != nil {
		sc.line.Words = append(sc.line.Words, w)
		return
	}
	p.addLine(sc, Line{Class: ClassLine, BBox: w.BBox, Words: []Word{w}})
}

func (p *parser) addLine(sc scope, l Line) {
	if sc.par != nil {
		sc.par.Lines = append(sc.par.Lines, l)
		return
	}
	p.addParagraph(sc, Paragraph{Lang: sc.lang, BBox: l.BBox, Lines: []Line{l}})
}

func (p *parser) addParagraph(sc scope, par Paragraph) {
	if sc.area != nil {
		sc.area.Paragraphs = append(sc.area.Paragraphs, par)
		return
	}
	p.addArea(sc, Area{BBox: par.BBox, Paragraphs: []Paragraph{par}})
}

func (p *parser) addArea(sc scope, a Area) {
	if sc.page != nil {
		sc.page.Areas = append(sc.page.Areas, a)
		return
	}
	p.doc.Pages = append(p.doc.Pages, Page{BBox: a.BBox, Areas: []Area{a}})
}

func setBBox(dst *BBox, props map[string]string, n *html.Node) error {
	v, ok := props["bbox"]
	if !ok {
		return nil
	}
	b, err := ParseBBox(v)
	if err != nil {
		if id := attr(n, "id"); id != "" {
			return fmt.Errorf("%s: %w", id, err)
		}
		return err
	}
	*dst = b
	return nil
}

func collectText(n *html.Node, sb *strings.Builder, w *Word) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			sb.WriteString(c.Data)
		case html.ElementNode:
			switch c.DataAtom {
			case atom.Strong, atom.B:
				w.Bold = true
			case atom.Em, atom.I:
				w.Italic = true
			}
			collectText(c, sb, w)
		}
	}
}

func classOf(n *html.Node) string {
	for _, c := range strings.Fields(attr(n, "class")) {
		if strings.HasPrefix(c, "ocr") {
			return c
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// Words returns every word in reading order.
func (d *Document) Words() []Word {
	var words []Word
	for _, page := range d.Pages {
		for _, area := range page.Areas {
			for _, par := range area.Paragraphs {
				for _, line := range par.Lines {
					words = append(words, line.Words...)
				}
			}
		}
	}
	return words
}

// Text renders the document as plain text: words joined by spaces, lines
// by newlines and paragraphs by a blank line.
func (d *Document) Text() string {
	var sb strings.Builder
	for _, page := range d.Pages {
		for _, area := range page.Areas {
			for _, par := range area.Paragraphs {
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				for _, line := range par.Lines {
					sb.WriteString(line.Text())
					sb.WriteString("\n")
				}
			}
		}
	}
	return sb.String()
}

// Text joins the line's words with single spaces.
func (l Line) Text() string {
	parts := make([]string, 0, len(l.Words))
	for _, w := range l.Words {
		parts = append(parts, w.Text)
	}
	return strings.Join(parts, " ")
}

// MeanConfidence averages word confidences, or returns -1 with no words.
func (d *Document) MeanConfidence() float64 {
	words := d.Words()
	if len(words) == 0 {
		return -1
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}
