package domain

import "strings"

// MIMETypeForSourceType maps a batch sourceType onto the MIME type whose
// normaliser handles it. Unknown types map to plain text.
func MIMETypeForSourceType(sourceType string) string {
	switch strings.ToLower(strings.TrimSpace(sourceType)) {
	case "markdown", "md":
		return "text/markdown"
	case "html":
		return "text/html"
	case "pdf":
		return "application/pdf"
	default:
		return "text/plain"
	}
}

// MIMETypeForFilename guesses a MIME type from a file extension.
func MIMETypeForFilename(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(lower, ".md"), strings.HasSuffix(lower, ".markdown"):
		return "text/markdown"
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		return "text/html"
	default:
		return "text/plain"
	}
}
