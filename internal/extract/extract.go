// Package extract implements the regex extraction passes of the
// classification stage (spec.md §4.5): error codes, versions, links,
// videos, and part numbers over already-chunked text, plus products
// referenced in the text filtered by the document's detected
// manufacturer. Every pattern here is a closed, per-manufacturer or
// generic table — never a free-form heuristic — per spec.md's "closed
// patterns per manufacturer id" language.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/kunzeritter/docpipeline/internal/model"
)

// ErrorCodePattern is one row of a manufacturer's closed error-code regex
// table. Groups[0] (the whole match) is the code; solution text is found
// by the next-paragraph heuristic in Solutions, not by the regex itself.
type ErrorCodePattern struct {
	Manufacturer string
	Regex        *regexp.Regexp
}

// errorCodePatterns is seeded with representative real-world printer/MFP
// fault-code shapes per manufacturer, plus a generic catch-all applied
// when the document's manufacturer doesn't have (or isn't) a dedicated
// row. Konica Minolta's "C####"/"J##-##" and HP's "##.##.##" service
// error formats are well documented across manufacturer service manuals;
// extend this table with verified rows rather than widening the regexes.
var errorCodePatterns = []ErrorCodePattern{
	{Manufacturer: "Konica Minolta, Inc.", Regex: regexp.MustCompile(`\bC\d{4}\b`)},
	{Manufacturer: "Konica Minolta, Inc.", Regex: regexp.MustCompile(`\bJ\d{2}-\d{2}\b`)},
	{Manufacturer: "HP Inc.", Regex: regexp.MustCompile(`\b\d{2}\.\d{2}\.\d{2}\b`)},
	{Manufacturer: "Kyocera Document Solutions Inc.", Regex: regexp.MustCompile(`\bC\d{4}\b`)},
	{Manufacturer: "Xerox Corporation", Regex: regexp.MustCompile(`\b\d{3}-\d{3}\b`)},
	{Manufacturer: "Canon Inc.", Regex: regexp.MustCompile(`\bE\d{3}-\d{4}\b`)},
	{Manufacturer: "Ricoh Company, Ltd.", Regex: regexp.MustCompile(`\bSC\d{3}\b`)},
}

// genericErrorCodeRe is the catch-all applied regardless of manufacturer.
var genericErrorCodeRe = regexp.MustCompile(`\b[A-Z]{1,4}-?\d{2,5}\b`)

// solutionBreakRe matches the start of the next error code block or a
// section-heading line, bounding the next-paragraph solution-text
// heuristic (spec.md §4.5: "until the next code or a section change").
var solutionBreakRe = regexp.MustCompile(`(?im)^\s*(\d+(?:\.\d+)*\s+[A-Z]|chapter\b|section\b)`)

// ErrorCodeMatch is one extracted error code occurrence.
type ErrorCodeMatch struct {
	Code             string
	Solution         string
	ExtractionMethod model.ExtractionMethod
}

// ErrorCodes scans content for manufacturer-specific patterns, falling
// back to the generic catch-all when manufacturer has no dedicated row,
// and attaches solution text using the next-paragraph heuristic: the text
// between this match and the next code occurrence or section break.
func ErrorCodes(content, manufacturer string) []ErrorCodeMatch {
	var patterns []*regexp.Regexp
	for _, p := range errorCodePatterns {
		if p.Manufacturer == manufacturer {
			patterns = append(patterns, p.Regex)
		}
	}
	if len(patterns) == 0 {
		patterns = []*regexp.Regexp{genericErrorCodeRe}
	}

	type occurrence struct {
		code       string
		start, end int
	}
	var occs []occurrence
	for _, re := range patterns {
		for _, loc := range re.FindAllStringIndex(content, -1) {
			occs = append(occs, occurrence{code: content[loc[0]:loc[1]], start: loc[0], end: loc[1]})
		}
	}
	if len(occs) == 0 {
		return nil
	}
	sort.Slice(occs, func(a, b int) bool { return occs[a].start < occs[b].start })

	matches := make([]ErrorCodeMatch, 0, len(occs))
	for i, occ := range occs {
		boundary := len(content)
		if i+1 < len(occs) {
			boundary = occs[i+1].start
		}
		if boundary < occ.end {
			boundary = occ.end
		}
		tail := content[occ.end:boundary]
		if loc := solutionBreakRe.FindStringIndex(tail); loc != nil {
			tail = tail[:loc[0]]
		}
		matches = append(matches, ErrorCodeMatch{
			Code:             occ.code,
			Solution:         strings.TrimSpace(tail),
			ExtractionMethod: model.ExtractionRegex,
		})
	}
	return matches
}

// versionRe matches firmware/software version strings like "v2.14.3" or
// "Firmware 3.01".
var versionRe = regexp.MustCompile(`(?i)\b(?:v(?:ersion)?\.?\s?|firmware\s+)(\d+(?:\.\d+){1,3})\b`)

// Versions returns every distinct version string found in content.
func Versions(content string) []string {
	return uniqueGroups(versionRe.FindAllStringSubmatch(content, -1), 1)
}

// urlRe matches http(s) URLs, trimming common trailing punctuation that
// regex-over-prose tends to sweep up.
var urlRe = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// Links returns every distinct URL found in content.
func Links(content string) []string {
	found := urlRe.FindAllString(content, -1)
	seen := map[string]bool{}
	var out []string
	for _, u := range found {
		u = strings.TrimRight(u, ".,;:)")
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

// videoHostRe restricts Videos to known video-hosting domains, per
// spec.md's "per-pattern whitelist" requirement — a bare URL regex would
// flag every hyperlink as a video.
var videoHostRe = regexp.MustCompile(`(?i)(?:youtube\.com/watch|youtu\.be/|vimeo\.com/)`)

// Videos filters Links down to URLs on a known video-hosting domain.
func Videos(content string) []string {
	var out []string
	for _, u := range Links(content) {
		if videoHostRe.MatchString(u) {
			out = append(out, u)
		}
	}
	return out
}

// partNumberRe matches manufacturer part numbers: one to four uppercase
// letters followed by digits, optionally with one or more dash-suffixed
// revision groups, e.g. "A123456", "RM2-5415-000".
var partNumberRe = regexp.MustCompile(`\b[A-Z]{1,4}\d{1,6}(?:-[A-Z0-9]+)+\b|\b[A-Z]{1,4}\d{3,6}\b`)

// PartNumber is one extracted part-number occurrence with surrounding
// context, used to populate model.Part.Description.
type PartNumber struct {
	PartNumber  string
	Description string
}

// descriptionWindow bounds how much trailing text after a part number is
// kept as its description candidate.
const descriptionWindow = 80

// PartNumbers scans content for part-number-shaped tokens and pairs each
// with a short trailing-text snippet as a description candidate.
func PartNumbers(content string) []PartNumber {
	locs := partNumberRe.FindAllStringIndex(content, -1)
	out := make([]PartNumber, 0, len(locs))
	for _, loc := range locs {
		end := loc[1] + descriptionWindow
		if end > len(content) {
			end = len(content)
		}
		desc := strings.TrimSpace(content[loc[1]:end])
		if nl := strings.IndexByte(desc, '\n'); nl >= 0 {
			desc = desc[:nl]
		}
		desc = strings.TrimLeft(desc, " -:—")
		out = append(out, PartNumber{PartNumber: content[loc[0]:loc[1]], Description: desc})
	}
	return out
}

// ProductReference is a manufacturer model string found in content,
// filtered to the document's detected manufacturer by the caller (models
// are ambiguous across manufacturers, so this package never guesses one).
type ProductReference struct {
	ModelNumber string
}

// modelNumberRe matches a plausible model-number token: one to three
// leading letters, optional dash, at least 2 digits, and an optional
// trailing letter suffix (e.g. "CX920de", "MX611dhe").
var modelNumberRe = regexp.MustCompile(`\b[A-Z]{1,3}-?\d{2,5}[a-z]{0,4}\b`)

// Products scans content for model-number-shaped tokens. Callers are
// responsible for filtering the result against the document's detected
// manufacturer's known model prefixes before creating Product rows,
// per spec.md §4.5's "filtered by the document's detected manufacturer".
func Products(content string) []ProductReference {
	found := modelNumberRe.FindAllString(content, -1)
	seen := map[string]bool{}
	var out []ProductReference
	for _, m := range found {
		if !seen[m] {
			seen[m] = true
			out = append(out, ProductReference{ModelNumber: m})
		}
	}
	return out
}

func uniqueGroups(matches [][]string, group int) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		if group >= len(m) {
			continue
		}
		v := m[group]
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
