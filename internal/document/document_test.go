package document

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/llm"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/prompts"
	"github.com/harishm17/study-buddy-sub001/internal/testhelpers"
)

// buildPDF writes a single-page PDF with a correct xref table.
func buildPDF(t *testing.T, text string) []byte {
	t.Helper()
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractPDF(t *testing.T) {
	doc, err := Extract("notes.PDF", buildPDF(t, "Hello PDF World"))
	require.NoError(t, err)
	assert.Equal(t, ".pdf", doc.Extension)
	assert.Equal(t, 1, doc.PageCount)
	assert.Contains(t, doc.Text, "Hello")
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, 1, doc.Pages[0].Number)

	_, err = Extract("broken.pdf", []byte("not a pdf"))
	assert.Error(t, err)
}

func TestExtractDOCX(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Photosynthesis</w:t></w:r></w:p>
<w:p><w:r><w:t>Plants convert light</w:t></w:r><w:r><w:t xml:space="preserve"> into energy.</w:t></w:r></w:p>
<w:p><w:r><w:t></w:t></w:r></w:p>
<w:p><w:r><w:t>Chlorophyll</w:t></w:r><w:r><w:tab/><w:t>absorbs light.</w:t></w:r></w:p>
</w:body></w:document>`
	doc, err := Extract("bio.docx", buildZip(t, map[string]string{"word/document.xml": body}))
	require.NoError(t, err)
	assert.Equal(t, "# Photosynthesis\n\nPlants convert light into energy.\n\nChlorophyll\tabsorbs light.", doc.Text)
	assert.Equal(t, 1, doc.PageCount)

	_, err = Extract("empty.docx", buildZip(t, map[string]string{"other.xml": "<a/>"}))
	assert.Error(t, err)
}

func TestExtractPPTX(t *testing.T) {
	slide := func(text string) string {
		return `<p:sld xmlns:p="p" xmlns:a="a"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` +
			text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
	}
	data := buildZip(t, map[string]string{
		"ppt/slides/slide10.xml": slide("Tenth"),
		"ppt/slides/slide2.xml":  slide("Second"),
		"ppt/slides/slide1.xml":  slide("First"),
		"ppt/slides/_rels/x.xml": "<r/>",
	})
	doc, err := Extract("deck.pptx", data)
	require.NoError(t, err)
	assert.Equal(t, 3, doc.PageCount)
	require.Len(t, doc.Pages, 3)
	assert.Equal(t, "First", doc.Pages[0].Text)
	assert.Equal(t, "Second", doc.Pages[1].Text)
	assert.Equal(t, "Tenth", doc.Pages[2].Text)
	assert.Equal(t, 3, doc.Pages[2].Number)
}

func TestExtractTextAndUnsupported(t *testing.T) {
	doc, err := Extract("a.md", []byte("# Title  \r\n\n\n\nBody\x00text   here\t\tok"))
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nBody text here ok", doc.Text)

	_, err = Extract("a.exe", nil)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestDetectHeading(t *testing.T) {
	cases := []struct {
		line  string
		ok    bool
		level int
	}{
		{"1. Introduction", true, 1},
		{"2.3 Light Reactions", true, 2},
		{"4.1.2.5 Deep Detail", true, 3},
		{"Chapter 3 Cells", true, 1},
		{"Section 3.2: Organelles", true, 2},
		{"## Markdown Heading", true, 2},
		{"KEY CONCEPTS", true, 1},
		{"2024 was a good year", false, 0},
		{"1. Mix the reagents and wait for them to settle.", false, 0},
		{"A normal sentence about biology.", false, 0},
		{"ab", false, 0},
	}
	for _, tc := range cases {
		h, ok := detectHeading(tc.line)
		assert.Equalf(t, tc.ok, ok, "line %q", tc.line)
		if tc.ok {
			assert.Equalf(t, tc.level, h.level, "line %q", tc.line)
		}
	}
}

func TestChunkDocumentHierarchy(t *testing.T) {
	doc := &Document{Pages: []Page{
		{Number: 1, Text: "Preface text before any heading.\n\nChapter 1 Cells\nCells are the unit of life.\n\n1.1 Membranes\nMembranes enclose cells."},
		{Number: 2, Text: "More about membranes.\n\nChapter 2 Energy\nATP stores energy."},
	}}

	chunks := ChunkDocument(doc, 800)
	require.Len(t, chunks, 4)

	assert.Equal(t, "", chunks[0].SectionHierarchy)
	assert.Equal(t, "Preface text before any heading.", chunks[0].Text)

	assert.Equal(t, "Chapter 1 Cells", chunks[1].SectionHierarchy)
	assert.Equal(t, "Chapter 1 Cells > 1.1 Membranes", chunks[2].SectionHierarchy)
	assert.Equal(t, "Membranes enclose cells.\n\nMore about membranes.", chunks[2].Text)
	assert.Equal(t, 1, chunks[2].PageStart)
	assert.Equal(t, 2, chunks[2].PageEnd)

	assert.Equal(t, "Chapter 2 Energy", chunks[3].SectionHierarchy, "same-level heading replaces the previous one")
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, EstimateTokens(c.Text), c.TokenCount)
	}
}

func TestChunkDocumentSplitsLongSections(t *testing.T) {
	para := strings.Repeat("word ", 80) // 400 chars, 100 tokens
	paras := make([]string, 10)
	for i := range paras {
		paras[i] = strings.TrimSpace(para)
	}
	doc := &Document{Pages: []Page{{Number: 1, Text: "# Big\n" + strings.Join(paras, "\n\n")}}}

	chunks := ChunkDocument(doc, 250)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, c.TokenCount, 250)
		assert.Equal(t, "Big", c.SectionHierarchy)
	}

	// within 20% overflow the section stays whole
	small := &Document{Pages: []Page{{Number: 1, Text: strings.Join(paras[:3], "\n\n")}}}
	assert.Len(t, ChunkDocument(small, 250), 1)
}

func newValidator(t *testing.T, provider llm.Provider) *Validator {
	t.Helper()
	pm, err := prompts.NewPromptManager()
	require.NoError(t, err)
	return NewValidator(provider, pm, zap.NewNop())
}

func TestValidator(t *testing.T) {
	ctx := context.Background()
	longText := strings.Repeat("Cells divide by mitosis. ", 10)
	readable := &Document{Text: longText, Pages: []Page{{Number: 1, Text: longText}}, PageCount: 4}

	t.Run("no pages", func(t *testing.T) {
		res := newValidator(t, nil).Validate(ctx, &Document{}, "a.pdf", models.CategoryLectureNotes)
		assert.Equal(t, models.ValidationInvalid, res.Status)
		assert.Equal(t, "document has no pages", res.Notes)
	})

	t.Run("image only", func(t *testing.T) {
		doc := &Document{Pages: []Page{{Number: 1, Text: "fig 1"}}, PageCount: 3}
		res := newValidator(t, nil).Validate(ctx, doc, "a.pdf", models.CategoryLectureNotes)
		assert.Equal(t, models.ValidationInvalid, res.Status)
		assert.Equal(t, "document appears to be empty or contains only images", res.Notes)
		assert.Equal(t, 3, res.PageCount)
	})

	t.Run("no provider", func(t *testing.T) {
		res := newValidator(t, nil).Validate(ctx, readable, "a.pdf", models.CategoryLectureNotes)
		assert.Equal(t, models.ValidationValid, res.Status)
	})

	t.Run("llm verdict", func(t *testing.T) {
		fake := &testhelpers.FakeLLM{Respond: testhelpers.ReplyWith("```json\n{\"is_valid\": false, \"notes\": \"This is a recipe\"}\n```")}
		res := newValidator(t, fake).Validate(ctx, readable, "cake.pdf", models.CategorySampleExams)
		assert.Equal(t, models.ValidationInvalid, res.Status)
		assert.Equal(t, "This is a recipe", res.Notes)

		reqs := fake.Requests()
		require.Len(t, reqs, 1)
		assert.True(t, reqs[0].UseMini)
		assert.True(t, reqs[0].JSON)
		assert.Contains(t, reqs[0].Prompt, "cake.pdf")
		assert.Contains(t, reqs[0].Prompt, `"sample exams"`)
	})

	t.Run("llm error", func(t *testing.T) {
		fake := &testhelpers.FakeLLM{}
		res := newValidator(t, fake).Validate(ctx, readable, "a.pdf", models.CategoryOther)
		assert.Equal(t, models.ValidationInvalid, res.Status)
		assert.True(t, strings.HasPrefix(res.Notes, "Validation error:"))
	})
}
