package normalisers

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/lapis-labs/lapis-backend/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BinaryNormaliser = (*PDFNormaliser)(nil)

// PDFNormaliser extracts plain text from PDF files.
type PDFNormaliser struct{}

// Decode reads every page's text layer.
func (n *PDFNormaliser) Decode(data []byte) (string, error) {
	rdr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	text, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, text); err != nil {
		return "", fmt.Errorf("read pdf buffer: %w", err)
	}
	return buf.String(), nil
}

func (n *PDFNormaliser) Normalise(content string, mimeType string) string {
	content = normaliseLineEndings(content)

	// Extracted text often carries runs of spaces from column layout
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(multiSpaces.ReplaceAllString(line, " "))
	}
	content = multiNewlines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")

	return strings.TrimSpace(content)
}

func (n *PDFNormaliser) SupportedTypes() []string {
	return []string{"application/pdf"}
}

func (n *PDFNormaliser) Priority() int {
	return 60 // Format-specific, binary
}
