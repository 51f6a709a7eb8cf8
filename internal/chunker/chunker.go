// Package chunker implements the hierarchical, section- and
// error-code-aware chunker described for the text_extraction stage:
// it turns per-page text into an ordered sequence of Chunks with a
// stable section_hierarchy, a chunk_type classification, and
// content-hash based intra-document deduplication.
//
// Sizing reuses the measuring/overlap approach of
// internal/textsplitters (target size with a carried-forward overlap
// tail), but groups page-tagged paragraphs directly rather than going
// through a textsplitters.Splitter: that interface returns plain
// strings and would lose the page association a chunk's page_start/
// page_end need.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/kunzeritter/docpipeline/internal/model"
	"github.com/kunzeritter/docpipeline/internal/pipelineerr"
)

// Strategy selects how aggressively the chunker honors structural and
// atomic-unit boundaries. All three strategies share the same
// algorithm; the distinction is which hints a caller asked for so
// that per-document overrides in the pipeline config are meaningful.
type Strategy string

const (
	StrategyContextual     Strategy = "contextual"
	StrategyStructureAware Strategy = "structure_aware"
	StrategyErrorCodeAware Strategy = "error_code_aware"
)

// Config is the per-document chunking configuration.
type Config struct {
	Strategy   Strategy
	TargetSize int // runes
	Overlap    int // runes, carried from the tail of the previous group
	MinSize    int // runes; groups below this are still flushed, never padded across unrelated units
	MaxSize    int // runes; defaulted by New but not consulted when grouping, so no chunk is cut to fit it
}

// DefaultConfig returns conservative defaults for a document whose
// chunking config was not specified explicitly.
func DefaultConfig() Config {
	return Config{
		Strategy:   StrategyStructureAware,
		TargetSize: 1000,
		Overlap:    150,
		MinSize:    200,
		MaxSize:    4000,
	}
}

// Page is one page of extracted text.
type Page struct {
	Number int
	Text   string
}

var (
	numberedHeadingRe = regexp.MustCompile(`^(\d+(?:\.\d+)*)\s+[A-Z]`)
	markdownHeadingRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	markerHeadingRe   = regexp.MustCompile(`(?i)^(chapter|section|troubleshooting)\b[\s:.-]*(.*)$`)

	errorCodeContextRe = regexp.MustCompile(`(?i)\b(error|fault|code)\b`)
	errorCodeTokenRe   = regexp.MustCompile(`\b[A-Z]{1,4}-?\d{2,5}\b`)
	procedureStepRe    = regexp.MustCompile(`(?i)^\s*(step\s*\d+|[0-9]+[.)])\s`)
	procedureWordRe    = regexp.MustCompile(`(?i)\b(procedure|how to|instructions)\b`)
	listPrefixRe       = regexp.MustCompile(`^\s*([-*•]|\d+[.)])\s`)
	tableRowRe         = regexp.MustCompile(`\t|\s{2,}\S+\s{2,}\S+|\|.*\|`)
	partNumberRe       = regexp.MustCompile(`\b[A-Z]{1,4}-?\d{2,6}(?:-[A-Z0-9]+)?\b`)
)

// Chunker splits paged document text into Chunks per Config.
type Chunker struct {
	cfg Config
}

func New(cfg Config) *Chunker {
	if cfg.TargetSize <= 0 {
		cfg.TargetSize = DefaultConfig().TargetSize
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	return &Chunker{cfg: cfg}
}

type line struct {
	page int
	text string
}

// unit is one indivisible piece of content with the page it started
// on. Grouping never splits a unit; atomic units (error-code blocks,
// numbered procedure steps) are merged into a single unit up front so
// they can never straddle a chunk boundary.
type unit struct {
	page      int // page the unit starts on
	pageEnd   int // page the unit ends on
	text      string
	atomic    bool
	chunkType model.ChunkType
}

// segment is the text under one section_hierarchy path, possibly
// spanning several pages when no new heading interrupts it.
type segment struct {
	heading  []string
	pageFrom int
	pageTo   int
	lines    []line
}

// Chunk splits the given pages into an ordered slice of Chunks.
// Returned chunks have ChunkIndex set to a stable sequence starting
// at 1 over kept (non-duplicate) chunks.
func (c *Chunker) Chunk(pages []Page) ([]model.Chunk, error) {
	segments := c.segmentPages(pages)

	seen := make(map[string]bool)
	var out []model.Chunk
	index := 1

	for _, seg := range segments {
		units := c.buildUnits(seg)
		groups := c.group(units)
		for _, g := range groups {
			content := strings.TrimSpace(g.text)
			if content == "" {
				continue
			}
			hash := contentHash(content)
			if seen[hash] {
				continue
			}
			seen[hash] = true

			ct := classify(content, g.chunkTypeHint)
			out = append(out, model.Chunk{
				ChunkIndex:       index,
				PageStart:        g.pageFrom,
				PageEnd:          g.pageTo,
				Content:          content,
				ContentHash:      hash,
				ChunkType:        ct,
				SectionHierarchy: append([]string(nil), seg.heading...),
				Metadata:         classifyMetadata(content, ct),
			})
			index++
		}
	}

	if len(out) == 0 {
		return nil, &pipelineerr.InputError{Message: "zero chunks produced from input pages"}
	}
	return out, nil
}

// segmentPages walks pages in order, tracking a heading stack, and
// closes a segment whenever a new heading is seen. A segment left
// open at the end of a page continues onto the next page, which is
// how a chunk ends up with PageStart < PageEnd.
func (c *Chunker) segmentPages(pages []Page) []segment {
	var segments []segment
	var stack []string
	var cur *segment

	closeCurrent := func() {
		if cur != nil && len(cur.lines) > 0 {
			segments = append(segments, *cur)
		}
		cur = nil
	}

	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		for _, raw := range strings.Split(p.Text, "\n") {
			l := strings.TrimRight(raw, "\r")
			if level, title, ok := detectHeading(l); ok {
				closeCurrent()
				if level-1 < len(stack) {
					stack = stack[:level-1]
				}
				for len(stack) < level-1 {
					stack = append(stack, "")
				}
				stack = append(stack, title)
				cur = &segment{
					heading:  append([]string(nil), stack...),
					pageFrom: p.Number,
					pageTo:   p.Number,
				}
				continue
			}
			if cur == nil {
				cur = &segment{heading: append([]string(nil), stack...), pageFrom: p.Number, pageTo: p.Number}
			}
			cur.pageTo = p.Number
			cur.lines = append(cur.lines, line{page: p.Number, text: l})
		}
	}
	closeCurrent()
	return segments
}

// detectHeading classifies a single line as a heading and returns its
// nesting level (1 = top) and title text.
func detectHeading(l string) (level int, title string, ok bool) {
	trimmed := strings.TrimSpace(l)
	if trimmed == "" {
		return 0, "", false
	}
	if m := numberedHeadingRe.FindStringSubmatch(trimmed); m != nil {
		depth := strings.Count(m[1], ".") + 1
		return depth, trimmed, true
	}
	if m := markdownHeadingRe.FindStringSubmatch(trimmed); m != nil {
		return len(m[1]), strings.TrimSpace(m[2]), true
	}
	if m := markerHeadingRe.FindStringSubmatch(trimmed); m != nil {
		kind := strings.ToLower(m[1])
		level := 2
		if kind == "chapter" {
			level = 1
		}
		return level, trimmed, true
	}
	return 0, "", false
}

// buildUnits groups a segment's lines into paragraphs, then merges
// consecutive paragraphs that form an error-code block or a numbered
// procedure into a single atomic unit so grouping can never split
// them.
func (c *Chunker) buildUnits(seg segment) []unit {
	var paras []unit
	var curLines []string
	curPage, curPageEnd := 0, 0
	flush := func() {
		if len(curLines) == 0 {
			return
		}
		text := strings.Join(curLines, "\n")
		paras = append(paras, unit{page: curPage, pageEnd: curPageEnd, text: text})
		curLines = nil
	}
	for _, ln := range seg.lines {
		if strings.TrimSpace(ln.text) == "" {
			flush()
			continue
		}
		if len(curLines) == 0 {
			curPage = ln.page
		}
		curPageEnd = ln.page
		curLines = append(curLines, ln.text)
	}
	flush()

	var units []unit
	i := 0
	for i < len(paras) {
		p := paras[i]
		switch {
		case isErrorCodeParagraph(p.text):
			j := i + 1
			merged := p.text
			pageEnd := p.pageEnd
			for j < len(paras) && isErrorCodeParagraph(paras[j].text) {
				merged += "\n\n" + paras[j].text
				pageEnd = paras[j].pageEnd
				j++
			}
			units = append(units, unit{page: p.page, pageEnd: pageEnd, text: merged, atomic: true, chunkType: model.ChunkTypeErrorCode})
			i = j
		case procedureStepRe.MatchString(p.text):
			j := i + 1
			merged := p.text
			pageEnd := p.pageEnd
			for j < len(paras) && procedureStepRe.MatchString(paras[j].text) {
				merged += "\n" + paras[j].text
				pageEnd = paras[j].pageEnd
				j++
			}
			units = append(units, unit{page: p.page, pageEnd: pageEnd, text: merged, atomic: true, chunkType: model.ChunkTypeProcedure})
			i = j
		default:
			units = append(units, p)
			i++
		}
	}
	return units
}

func isErrorCodeParagraph(text string) bool {
	return errorCodeContextRe.MatchString(text) && errorCodeTokenRe.MatchString(text)
}

type group struct {
	pageFrom, pageTo int
	text             string
	chunkTypeHint    model.ChunkType
}

// group greedily accumulates units up to TargetSize, closing a group
// only when the next unit would push it past TargetSize and the current
// group already meets MinSize. Units are never split, so a single unit
// longer than TargetSize (atomic or not) still lands in one group, and
// MaxSize is not checked.
func (c *Chunker) group(units []unit) []group {
	if len(units) == 0 {
		return nil
	}
	var groups []group
	var cur strings.Builder
	var curPageFrom, curPageTo int
	var curHint model.ChunkType
	curSize := 0

	closeGroup := func() {
		if cur.Len() == 0 {
			return
		}
		groups = append(groups, group{pageFrom: curPageFrom, pageTo: curPageTo, text: cur.String(), chunkTypeHint: curHint})
		cur.Reset()
		curSize = 0
		curHint = ""
	}

	carryOverlap := func(prevText string) {
		if c.cfg.Overlap <= 0 || prevText == "" {
			return
		}
		tail := tailRunes(prevText, c.cfg.Overlap)
		if tail != "" {
			cur.WriteString(tail)
			cur.WriteString("\n\n")
			curSize = utf8.RuneCountInString(tail)
		}
	}

	for idx, u := range units {
		uSize := utf8.RuneCountInString(u.text)
		fits := curSize == 0 || curSize+uSize <= c.cfg.TargetSize || curSize < c.cfg.MinSize
		if !fits {
			prevText := cur.String()
			closeGroup()
			curPageFrom = u.page
			carryOverlap(prevText)
		}
		if cur.Len() == 0 {
			curPageFrom = u.page
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(u.text)
		curSize += uSize
		curPageTo = u.pageEnd
		if u.atomic && curHint == "" {
			curHint = u.chunkType
		}
		if idx == len(units)-1 {
			closeGroup()
		}
	}
	return groups
}

func tailRunes(s string, n int) string {
	r := []rune(s)
	if n >= len(r) {
		return s
	}
	return string(r[len(r)-n:])
}

// classify assigns a chunk_type from keyword sets, preferring an
// atomic-unit hint (error_code or procedure) determined while
// grouping.
func classify(content string, hint model.ChunkType) model.ChunkType {
	if hint != "" {
		return hint
	}
	lines := strings.Split(content, "\n")
	tableRows, listRows := 0, 0
	for _, l := range lines {
		if tableRowRe.MatchString(l) {
			tableRows++
		}
		if listPrefixRe.MatchString(l) {
			listRows++
		}
	}
	switch {
	case isErrorCodeParagraph(content):
		return model.ChunkTypeErrorCode
	case procedureStepRe.MatchString(content) || procedureWordRe.MatchString(content):
		return model.ChunkTypeProcedure
	case tableRows > 0 && tableRows >= listRows:
		return model.ChunkTypeTable
	case listRows > 0:
		return model.ChunkTypeList
	default:
		return model.ChunkTypeText
	}
}

func classifyMetadata(content string, ct model.ChunkType) model.ChunkMetadata {
	md := model.ChunkMetadata{
		ContainsErrorCode:  isErrorCodeParagraph(content),
		ContainsProcedure:  procedureStepRe.MatchString(content) || procedureWordRe.MatchString(content),
		ContainsPartNumber: partNumberRe.MatchString(content),
		Confidence:         0.6,
	}
	if md.ContainsErrorCode {
		if m := errorCodeTokenRe.FindString(content); m != "" {
			md.ErrorCode = m
		}
	}
	if ct == model.ChunkTypeErrorCode || ct == model.ChunkTypeProcedure {
		md.Confidence = 0.9
	}
	return md
}

// contentHash is SHA-256 of the NFC-normalized, trimmed content, used
// for intra-document deduplication by the caller.
func contentHash(content string) string {
	normalized := norm.NFC.String(strings.TrimSpace(content))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
