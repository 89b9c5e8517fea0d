// Package anchor turns bare timestamps in authored content into navigable
// links and resolves the links of freshly created content once its
// permanent location is known.
package anchor

import (
	"html"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/presentable/presentable/internal/timestamp"
)

// PlaceholderBase is the href prefix used for content that has no permanent
// identifier yet.
const PlaceholderBase = "placeholder://new"

const placeholderScheme = "placeholder://"

type Syntax int

const (
	Markdown Syntax = iota
	HTML
)

// Resolver builds the href for a link to the given whole second.
type Resolver func(seconds int) string

// PlaceholderResolver points links at the not-yet-existing content.
func PlaceholderResolver(seconds int) string {
	return PlaceholderBase + "?t=" + strconv.Itoa(seconds)
}

// PathResolver points links at base, carrying the offset in the t parameter.
func PathResolver(base string) Resolver {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return func(seconds int) string {
		return base + sep + "t=" + strconv.Itoa(seconds)
	}
}

var (
	// Regions in which timestamps are never linked: existing anchors, any
	// other tag (attributes included), markdown links and inline code.
	protectedPattern = regexp.MustCompile("(?is)<a\\b[^>]*>.*?</a\\s*>|<[^>]*>|\\[[^\\]]*\\]\\([^)]*\\)|`[^`]*`")

	// Whole colon-separated numeric runs, so that "1:02:03" is seen as one
	// token and never partially linked as "1:02".
	numericRunPattern = regexp.MustCompile(`\b\d+(?::\d+)+\b`)

	linkTextPattern = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

	// Text of links that already exist, including ones made by Link for
	// offsets of 100 minutes or more.
	referenceTextPattern = regexp.MustCompile(`^\d+:\d{2}$`)

	placeholderHrefPattern = regexp.MustCompile(`(\]\(\s*|href=["'])(` + regexp.QuoteMeta(placeholderScheme) + `[^)"'\s]*)`)
	resolvablePattern      = regexp.MustCompile(`^` + regexp.QuoteMeta(PlaceholderBase) + `\?t=(\d+)$`)

	emptyMarkdownLinkPattern = regexp.MustCompile(`\[(\d{1,2}:\d{2})\]\(\s*\)`)
	bareAnchorPattern        = regexp.MustCompile(`(?i)<a\s*>(\d{1,2}:\d{2})</a\s*>`)

	markdownLinkPattern = regexp.MustCompile(`\[([^\]]*)\]\(\s*([^)\s]*)\s*\)`)
	htmlAnchorPattern   = regexp.MustCompile(`(?is)<a\b[^>]*?href=["']([^"']*)["'][^>]*>(.*?)</a\s*>`)
)

type Scanner struct {
	Syntax   Syntax
	Resolver Resolver
}

// Scan replaces every bare M:SS timestamp outside existing links with a link
// built by the scanner's resolver. Timestamps that do not parse (for example
// "9:99") are left as they are. Scanning already scanned content is a no-op.
func (s Scanner) Scan(content string) string {
	resolve := s.Resolver
	if resolve == nil {
		resolve = PlaceholderResolver
	}

	var b strings.Builder
	b.Grow(len(content))

	last := 0
	for _, span := range protectedPattern.FindAllStringIndex(content, -1) {
		b.WriteString(s.linkRun(content[last:span[0]], resolve))
		b.WriteString(content[span[0]:span[1]])
		last = span[1]
	}
	b.WriteString(s.linkRun(content[last:], resolve))
	return b.String()
}

func (s Scanner) linkRun(text string, resolve Resolver) string {
	return numericRunPattern.ReplaceAllStringFunc(text, func(match string) string {
		if !linkTextPattern.MatchString(match) {
			return match
		}
		offset, err := timestamp.Parse(match)
		if err != nil {
			return match
		}
		return s.link(match, resolve(timestamp.WholeSeconds(offset)))
	})
}

// Link renders a link to offset with the scanner's syntax and resolver. Scan
// only recognizes one or two minute digits, so callers stamping a known
// offset use Link to cover talks of 100 minutes or more as well.
func (s Scanner) Link(offset float64) string {
	resolve := s.Resolver
	if resolve == nil {
		resolve = PlaceholderResolver
	}
	return s.link(timestamp.LinkText(offset), resolve(timestamp.WholeSeconds(offset)))
}

func (s Scanner) link(text, href string) string {
	if s.Syntax == HTML {
		return `<a href="` + html.EscapeString(href) + `">` + text + `</a>`
	}
	return "[" + text + "](" + href + ")"
}

// UnresolvedLink is a placeholder href that does not follow the expected
// placeholder://new?t=<seconds> shape and was therefore left untouched.
type UnresolvedLink struct {
	Href     string
	Position int
}

// ResolvePlaceholders rewrites placeholder hrefs to point at permanentBase.
// Only the location is substituted; the t parameter and link text are kept.
func ResolvePlaceholders(content, permanentBase string) (string, []UnresolvedLink) {
	resolve := PathResolver(permanentBase)

	var unresolved []UnresolvedLink
	var b strings.Builder
	b.Grow(len(content))

	last := 0
	for _, m := range placeholderHrefPattern.FindAllStringSubmatchIndex(content, -1) {
		hrefStart, hrefEnd := m[4], m[5]
		href := content[hrefStart:hrefEnd]

		sub := resolvablePattern.FindStringSubmatch(href)
		if sub == nil {
			unresolved = append(unresolved, UnresolvedLink{Href: href, Position: hrefStart})
			continue
		}
		seconds, err := strconv.Atoi(sub[1])
		if err != nil {
			unresolved = append(unresolved, UnresolvedLink{Href: href, Position: hrefStart})
			continue
		}

		b.WriteString(content[last:hrefStart])
		b.WriteString(resolve(seconds))
		last = hrefEnd
	}
	b.WriteString(content[last:])
	return b.String(), unresolved
}

// HasPlaceholders reports whether content still links to placeholder hrefs.
func HasPlaceholders(content string) bool {
	return placeholderHrefPattern.MatchString(content)
}

// RenderTimestampLinks converts timestamp links that carry no href, such as
// "[1:20]()" or "<a>1:20</a>", into seek links on base. Links that already
// have an href are left alone.
func RenderTimestampLinks(content, base string) string {
	resolve := PathResolver(base)
	hrefFor := func(text string) (string, bool) {
		offset, err := timestamp.Parse(text)
		if err != nil {
			return "", false
		}
		return resolve(timestamp.WholeSeconds(offset)), true
	}

	content = emptyMarkdownLinkPattern.ReplaceAllStringFunc(content, func(match string) string {
		text := emptyMarkdownLinkPattern.FindStringSubmatch(match)[1]
		href, ok := hrefFor(text)
		if !ok {
			return match
		}
		return "[" + text + "](" + href + ")"
	})
	return bareAnchorPattern.ReplaceAllStringFunc(content, func(match string) string {
		text := bareAnchorPattern.FindStringSubmatch(match)[1]
		href, ok := hrefFor(text)
		if !ok {
			return match
		}
		return `<a href="` + html.EscapeString(href) + `">` + text + `</a>`
	})
}

// Reference is a timestamp link found in content.
type Reference struct {
	DisplayText string  `json:"displayText"`
	Offset      float64 `json:"offset"`
	Href        string  `json:"href"`
	Pending     bool    `json:"pending"`
}

// ReferencesIn lists the timestamp links in content in document order.
func ReferencesIn(content string) []Reference {
	type found struct {
		pos  int
		text string
		href string
	}
	var links []found
	for _, m := range markdownLinkPattern.FindAllStringSubmatchIndex(content, -1) {
		links = append(links, found{pos: m[0], text: content[m[2]:m[3]], href: content[m[4]:m[5]]})
	}
	for _, m := range htmlAnchorPattern.FindAllStringSubmatchIndex(content, -1) {
		links = append(links, found{pos: m[0], text: content[m[4]:m[5]], href: html.UnescapeString(content[m[2]:m[3]])})
	}

	slices.SortFunc(links, func(a, b found) int { return a.pos - b.pos })

	refs := []Reference{}
	for _, l := range links {
		text := strings.TrimSpace(l.text)
		if !referenceTextPattern.MatchString(text) {
			continue
		}
		offset, err := timestamp.Parse(text)
		if err != nil {
			continue
		}
		refs = append(refs, Reference{
			DisplayText: text,
			Offset:      offset,
			Href:        l.href,
			Pending:     strings.HasPrefix(l.href, placeholderScheme),
		})
	}
	return refs
}
