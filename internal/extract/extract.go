// Package extract pulls best-effort job fields out of raw posting markdown.
// It is a heuristic layer: first matching pattern wins, false positives are
// accepted, and a miss leaves the field empty rather than failing.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fields holds the extracted job posting fields. Empty string means the
// field could not be determined.
type Fields struct {
	Title    string
	Company  string
	Location string
}

const (
	maxTitleLen    = 150
	maxCompanyLen  = 100
	maxLocationLen = 100
)

var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^#\s+(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?im)Job Title:?\s*(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?im)Position:?\s*(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?im)Role:?\s*(.+?)(?:\n|$)`),
}

var companyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)Company:?\s*(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?im)Organization:?\s*(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?im)##\s*About\s+(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?m)at\s+([A-Z][A-Za-z0-9\s&.,-]+?)(?:\n|Location:|$)`),
}

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)Location:?\s*(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?im)Based in:?\s*(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?im)Office:?\s*(.+?)(?:\n|$)`),
	// City, State [zip]
	regexp.MustCompile(`(?m)([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?,\s*[A-Z]{2}(?:\s+\d{5})?)`),
	// City, Country
	regexp.MustCompile(`(?m)([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?,\s*[A-Z][a-z]+)`),
}

var (
	remotePattern    = regexp.MustCompile(`(?i)\b(remote|hybrid|work from home)\b`)
	markdownArtifact = regexp.MustCompile(`[#*\[\]()]`)

	linkedinJobPath     = regexp.MustCompile(`/jobs/view/([^/]+)`)
	linkedinCompanyPath = regexp.MustCompile(`company/([^/]+)`)

	titleCaser = cases.Title(language.English)
)

// FromText extracts title, company, and location from raw posting text,
// falling back to URL path segments for known job boards. Never fails.
func FromText(rawText, sourceURL string) Fields {
	return Fields{
		Title:    extractTitle(rawText, sourceURL),
		Company:  extractCompany(rawText, sourceURL),
		Location: extractLocation(rawText),
	}
}

// firstMatch runs patterns in priority order and returns the first capture
// that survives artifact stripping and the length cap.
func firstMatch(content string, patterns []*regexp.Regexp, maxLen int) string {
	for _, p := range patterns {
		m := p.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		candidate := strings.TrimSpace(markdownArtifact.ReplaceAllString(m[1], ""))
		if candidate != "" && len(candidate) < maxLen {
			return candidate
		}
	}
	return ""
}

func extractTitle(content, sourceURL string) string {
	if title := firstMatch(content, titlePatterns, maxTitleLen); title != "" {
		return title
	}
	if isJobBoardURL(sourceURL) {
		if m := linkedinJobPath.FindStringSubmatch(sourceURL); m != nil {
			return slugToTitle(m[1])
		}
	}
	return ""
}

func extractCompany(content, sourceURL string) string {
	if company := firstMatch(content, companyPatterns, maxCompanyLen); company != "" {
		return company
	}
	if isJobBoardURL(sourceURL) {
		if m := linkedinCompanyPath.FindStringSubmatch(sourceURL); m != nil {
			return slugToTitle(m[1])
		}
	}
	return ""
}

func extractLocation(content string) string {
	if loc := firstMatch(content, locationPatterns, maxLocationLen); loc != "" {
		return loc
	}
	if remotePattern.MatchString(content) {
		return "Remote"
	}
	return ""
}

// isJobBoardURL reports whether the URL host belongs to a job board whose
// path layout we know how to parse.
func isJobBoardURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com")
}

// slugToTitle converts a URL slug like "senior-backend-engineer" into
// "Senior Backend Engineer".
func slugToTitle(slug string) string {
	return titleCaser.String(strings.ReplaceAll(slug, "-", " "))
}
