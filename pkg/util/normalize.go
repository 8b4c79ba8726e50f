package util

import (
	"regexp"
	"strings"

	"github.com/sigap-dashboard/sigap-api/pkg/model"
)

// UnknownLabel replaces missing category and district names.
const UnknownLabel = "Unknown"

var (
	// htmlTagPattern matches HTML tags like <span>, </span>, <br/>, etc.
	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)
	// multiSpacePattern matches multiple consecutive whitespace characters
	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeIncident cleans free-text fields of an incident coming from an upstream form or
// import. Category and status keep their meaning; only surrounding noise is removed.
func NormalizeIncident(in model.Incident) model.Incident {
	out := in
	out.ID = strings.TrimSpace(in.ID)
	out.Description = cleanField(in.Description)
	out.Address = cleanField(in.Address)
	out.Category = cleanField(in.Category)
	out.Status = strings.TrimSpace(in.Status)
	if out.Timestamp != nil && out.Timestamp.IsZero() {
		out.Timestamp = nil
	}
	return out
}

// LabelOrUnknown returns s, or UnknownLabel when s is blank.
func LabelOrUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return UnknownLabel
	}
	return s
}

// IsResolved reports whether a free-form status means the case is cleared.
func IsResolved(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), "resolved")
}

// cleanField removes HTML tags, escape sequences, and normalizes whitespace.
func cleanField(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, `<\/`, `</`)
	s = strings.ReplaceAll(s, `\/`, `/`)
	s = htmlTagPattern.ReplaceAllString(s, "")

	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&nbsp;", " ")

	s = multiSpacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NeedsCleanup checks if an incident's text fields contain markup remnants.
func NeedsCleanup(in model.Incident) bool {
	for _, f := range []string{in.Description, in.Address, in.Category} {
		if strings.Contains(f, "<") || strings.Contains(f, `\/`) || strings.Contains(f, "&amp;") {
			return true
		}
	}
	return false
}
