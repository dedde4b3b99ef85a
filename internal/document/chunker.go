package document

import (
	"regexp"
	"strings"
	"unicode"
)

const DefaultChunkTokens = 800

// sections up to this factor of the target stay in one chunk
const overflowFactor = 1.2

type Chunk struct {
	Index            int
	Text             string
	SectionHierarchy string
	PageStart        int
	PageEnd          int
	TokenCount       int
}

// EstimateTokens uses the usual four characters per token.
func EstimateTokens(text string) int {
	return len(text) / 4
}

var (
	numberedHeading = regexp.MustCompile(`^(\d{1,3}\.)*\d{1,3}\.?\s+[A-Z]`)
	namedHeading    = regexp.MustCompile(`(?i)^(chapter|section|part)\s+(\d+(?:\.\d+)*)\b`)
	markdownHeading = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
)

type heading struct {
	level int
	text  string
}

// detectHeading classifies a single line.
func detectHeading(line string) (heading, bool) {
	line = strings.TrimSpace(line)
	if len(line) < 3 || len(line) > 100 {
		return heading{}, false
	}

	if m := markdownHeading.FindStringSubmatch(line); m != nil {
		return heading{level: min(len(m[1]), 3), text: strings.TrimSpace(m[2])}, true
	}
	if m := namedHeading.FindStringSubmatch(line); m != nil {
		return heading{level: min(strings.Count(m[2], ".")+1, 3), text: line}, true
	}
	if numberedHeading.MatchString(line) && len(line) <= 80 && !strings.HasSuffix(line, ".") {
		number := strings.TrimSuffix(strings.Fields(line)[0], ".")
		return heading{level: min(strings.Count(number, ".")+1, 3), text: line}, true
	}
	if isAllCapsTitle(line) {
		return heading{level: 1, text: line}, true
	}
	return heading{}, false
}

func isAllCapsTitle(line string) bool {
	if len(line) > 60 || strings.HasSuffix(line, ".") {
		return false
	}
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 3
}

type section struct {
	path      []heading
	paras     []string
	cur       []string
	pageStart int
	pageEnd   int
}

func (s *section) flushPara() {
	if len(s.cur) > 0 {
		s.paras = append(s.paras, strings.Join(s.cur, "\n"))
		s.cur = nil
	}
}

func (s *section) hierarchy() string {
	names := make([]string, len(s.path))
	for i, h := range s.path {
		names[i] = h.text
	}
	return strings.Join(names, " > ")
}

// ChunkDocument splits a document into chunks of about target tokens that never cross a
// section boundary.
func ChunkDocument(doc *Document, target int) []Chunk {
	if target <= 0 {
		target = DefaultChunkTokens
	}

	var chunks []Chunk
	cur := &section{}

	emit := func() {
		cur.flushPara()
		if len(cur.paras) == 0 {
			return
		}
		chunks = append(chunks, splitSection(cur, target, len(chunks))...)
		cur.paras = nil
	}

	for _, page := range doc.Pages {
		for _, line := range strings.Split(page.Text, "\n") {
			if strings.TrimSpace(line) == "" {
				cur.flushPara()
				continue
			}

			if h, ok := detectHeading(line); ok {
				emit()
				path := make([]heading, 0, len(cur.path)+1)
				for _, p := range cur.path {
					if p.level < h.level {
						path = append(path, p)
					}
				}
				cur = &section{path: append(path, h), pageStart: page.Number, pageEnd: page.Number}
				continue
			}

			if len(cur.paras) == 0 && len(cur.cur) == 0 && cur.pageStart == 0 {
				cur.pageStart = page.Number
			}
			cur.cur = append(cur.cur, strings.TrimSpace(line))
			cur.pageEnd = page.Number
		}
		// paragraphs do not continue across pages
		cur.flushPara()
	}
	emit()
	return chunks
}

func splitSection(s *section, target, startIndex int) []Chunk {
	hierarchy := s.hierarchy()
	newChunk := func(text string, tokens int) Chunk {
		return Chunk{
			Index:            startIndex,
			Text:             text,
			SectionHierarchy: hierarchy,
			PageStart:        s.pageStart,
			PageEnd:          s.pageEnd,
			TokenCount:       tokens,
		}
	}

	whole := strings.Join(s.paras, "\n\n")
	if tokens := EstimateTokens(whole); float64(tokens) <= float64(target)*overflowFactor {
		return []Chunk{newChunk(whole, tokens)}
	}

	var out []Chunk
	var buf []string
	bufTokens := 0
	for _, para := range s.paras {
		paraTokens := EstimateTokens(para)
		if bufTokens+paraTokens > target && len(buf) > 0 {
			out = append(out, newChunk(strings.Join(buf, "\n\n"), bufTokens))
			startIndex++
			buf, bufTokens = nil, 0
		}
		buf = append(buf, para)
		bufTokens += paraTokens
	}
	if len(buf) > 0 {
		out = append(out, newChunk(strings.Join(buf, "\n\n"), bufTokens))
	}
	return out
}
