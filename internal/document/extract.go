// Package document turns uploaded study materials into normalised text, splits it into
// section-aware chunks and decides whether a material is usable.
package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/harishm17/study-buddy-sub001/internal/utils"
)

// roughly one printed page of prose
const charsPerPage = 2400

var ErrUnsupported = errors.New("unsupported file type")

type Page struct {
	Number int
	Text   string
}

type Document struct {
	Text      string
	Pages     []Page
	PageCount int
	Extension string
}

// Extract reads the text out of an uploaded file.
func Extract(filename string, data []byte) (*Document, error) {
	ext := utils.NormalizeExtension(filename)
	switch ext {
	case ".pdf":
		return extractPDF(data)
	case ".docx":
		return extractDOCX(data)
	case ".pptx":
		return extractPPTX(data)
	case ".txt", ".md":
		return fromText(string(data), ext), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: .pdf, .docx, .pptx, .txt, .md)", ErrUnsupported, ext)
	}
}

var (
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	manyNewlines  = regexp.MustCompile(`\n{3,}`)
	manySpaces    = regexp.MustCompile(`[ \t]{2,}`)
)

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = trailingSpace.ReplaceAllString(text, "\n")
	text = manyNewlines.ReplaceAllString(text, "\n\n")
	text = manySpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func estimatePages(text string) int {
	return max(1, len(text)/charsPerPage)
}

func fromText(text, ext string) *Document {
	text = normalize(text)
	return &Document{
		Text:      text,
		Pages:     []Page{{Number: 1, Text: text}},
		PageCount: estimatePages(text),
		Extension: ext,
	}
}

func fromPages(pages []Page, count int, ext string) *Document {
	parts := make([]string, 0, len(pages))
	kept := pages[:0]
	for _, p := range pages {
		p.Text = normalize(p.Text)
		if p.Text == "" {
			continue
		}
		kept = append(kept, p)
		parts = append(parts, p.Text)
	}
	return &Document{
		Text:      strings.Join(parts, "\n\n"),
		Pages:     kept,
		PageCount: count,
		Extension: ext,
	}
}

func extractPDF(data []byte) (doc *Document, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("corrupt pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	n := r.NumPage()
	pages := make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read pdf page %d: %w", i, err)
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return fromPages(pages, n, ".pdf"), nil
}

func extractDOCX(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	body, err := readZipFile(zr, "word/document.xml")
	if err != nil {
		return nil, err
	}
	text, err := ooxmlText(body, true)
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}
	doc := fromText(text, ".docx")
	return doc, nil
}

var slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func extractPPTX(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}

	type slide struct {
		n    int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		if m := slideName.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, slide{n: n, file: f})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	pages := make([]Page, 0, len(slides))
	for i, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		text, err := ooxmlText(body, false)
		if err != nil {
			return nil, fmt.Errorf("parse slide %d: %w", s.n, err)
		}
		pages = append(pages, Page{Number: i + 1, Text: text})
	}
	return fromPages(pages, max(1, len(slides)), ".pptx"), nil
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if path.Clean(f.Name) != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("missing %s", name)
}

// ooxmlText collects <w:t>/<a:t> runs, one line per paragraph. Word heading styles
// become markdown headings so the chunker sees them.
func ooxmlText(body []byte, headings bool) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var out, para strings.Builder
	inText := false
	prefix := ""

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br":
				para.WriteByte('\n')
			case "pStyle":
				if headings {
					prefix = headingPrefix(attr(t, "val"))
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				line := strings.TrimSpace(para.String())
				if line != "" {
					out.WriteString(prefix)
					out.WriteString(line)
					out.WriteString("\n\n")
				}
				para.Reset()
				prefix = ""
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return out.String(), nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func headingPrefix(style string) string {
	switch strings.ToLower(style) {
	case "title", "heading1":
		return "# "
	case "heading2":
		return "## "
	case "heading3":
		return "### "
	}
	return ""
}
