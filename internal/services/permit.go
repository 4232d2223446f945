package services

import (
	"regexp"
	"strings"
)

// permitPatterns match PT-12345 / PTW 12345 style identifiers and
// "Permit ... 123-45678" in English or Portuguese.
var permitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)PTW?[-\s]?(\d+[-\d]*)`),
	regexp.MustCompile(`(?i)Permit.*?(\d{3}[-\s]?\d{5})`),
	regexp.MustCompile(`(?i)Permissão.*?(\d{3}[-\s]?\d{5})`),
}

// ExtractPermitNumber searches each source in order and returns the first
// identifier found, or "" when none matches.
func ExtractPermitNumber(sources ...string) string {
	for _, src := range sources {
		if src == "" {
			continue
		}
		for _, re := range permitPatterns {
			if m := re.FindStringSubmatch(src); m != nil {
				return m[1]
			}
		}
	}
	return ""
}

// GuideColor is the carbon-copy colour printed on a permit page. Only the
// white copy is audited.
type GuideColor string

const (
	GuideWhite   GuideColor = "BRANCA"
	GuideGreen   GuideColor = "VERDE"
	GuideYellow  GuideColor = "AMARELA"
	GuideUnknown GuideColor = "UNKNOWN"
)

var explicitGuide = regexp.MustCompile(`\[DOCUMENT TYPE: GUIA (BRANCA|VERDE|AMARELA)`)

var guidePatterns = []struct {
	color    GuideColor
	patterns []*regexp.Regexp
}{
	{GuideWhite, compileAll(`guia\s+branca`, `via\s+branca`, `c[óo]pia\s+branca`, `branca`)},
	{GuideGreen, compileAll(`guia\s+verde`, `via\s+verde`, `c[óo]pia\s+verde`, `verde`)},
	{GuideYellow, compileAll(`guia\s+amarela`, `via\s+amarela`, `c[óo]pia\s+amarela`, `amarela`)},
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// DetectGuideColor identifies which copy of the permit a page belongs to.
func DetectGuideColor(text string) GuideColor {
	if m := explicitGuide.FindStringSubmatch(text); m != nil {
		return GuideColor(m[1])
	}
	lower := strings.ToLower(text)
	for _, g := range guidePatterns {
		for _, re := range g.patterns {
			if re.MatchString(lower) {
				return g.color
			}
		}
	}
	return GuideUnknown
}

// Skipped reports whether pages of this copy are excluded from auditing.
func (g GuideColor) Skipped() bool {
	return g == GuideGreen || g == GuideYellow
}
