package driven

// Normaliser normalizes raw document content for embedding.
type Normaliser interface {
	// Normalise transforms raw content into normalized text.
	// The mimeType helps determine the appropriate processing.
	Normalise(content string, mimeType string) string

	// SupportedTypes returns MIME types this normaliser handles.
	// Can include wildcards like "text/*" or specific types like "text/markdown".
	SupportedTypes() []string

	// Priority returns the normaliser priority (higher = more specific).
	// Priority ranges:
	//   50-89:  Format-specific (PDF, Markdown)
	//   10-49:  Generic (basic text processing)
	Priority() int
}

// BinaryNormaliser is a Normaliser whose input must be decoded first,
// such as a PDF file.
type BinaryNormaliser interface {
	Normaliser

	// Decode extracts text from raw file bytes
	Decode(data []byte) (string, error)
}

// NormaliserRegistry manages content normalisers.
// When multiple normalisers match a MIME type, the highest priority one is used.
type NormaliserRegistry interface {
	// Get retrieves the best-matching normaliser for a MIME type.
	// Returns nil if no normaliser is registered for the type.
	Get(mimeType string) Normaliser

	// Register registers a normaliser.
	Register(normaliser Normaliser)

	// List returns all registered MIME types.
	List() []string

	// NormaliseFile decodes (when needed) and normalises an uploaded file.
	// Unknown types are treated as plain text.
	NormaliseFile(data []byte, mimeType string) (string, error)
}

// Chunker splits text into bounded, overlapping pieces.
type Chunker interface {
	// Chunk splits text into pieces of at most maxChunkSize bytes where
	// consecutive pieces share up to overlap bytes.
	Chunk(text string, maxChunkSize, overlap int) []string
}
