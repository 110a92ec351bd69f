package normalisers

import (
	"fmt"
	"mime"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/lapis-labs/lapis-backend/internal/core/ports/driven"
)

var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry resolves a normaliser per media type. Entries are kept ordered by
// priority, highest first, so the first match wins.
type Registry struct {
	mu      sync.RWMutex
	entries []driven.Normaliser
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a normaliser. Equal priorities keep registration order.
func (r *Registry) Register(normaliser driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := sort.Search(len(r.entries), func(i int) bool {
		return r.entries[i].Priority() < normaliser.Priority()
	})
	r.entries = slices.Insert(r.entries, i, normaliser)
}

// Get returns the highest priority normaliser for mimeType, or nil.
func (r *Registry) Get(mimeType string) driven.Normaliser {
	mediaType := baseMediaType(mimeType)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, n := range r.entries {
		for _, pattern := range n.SupportedTypes() {
			if mediaTypeMatches(pattern, mediaType) {
				return n
			}
		}
	}
	return nil
}

// List returns the sorted, de-duplicated media types of every normaliser.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var types []string
	for _, n := range r.entries {
		types = append(types, n.SupportedTypes()...)
	}
	slices.Sort(types)
	return slices.Compact(types)
}

// NormaliseFile extracts text from an uploaded file. Media types without a
// normaliser are read as plain text.
func (r *Registry) NormaliseFile(data []byte, mimeType string) (string, error) {
	n := r.Get(mimeType)
	if n == nil {
		n = &PlaintextNormaliser{}
	}

	content := string(data)
	if bn, ok := n.(driven.BinaryNormaliser); ok {
		decoded, err := bn.Decode(data)
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", mimeType, err)
		}
		content = decoded
	}

	return n.Normalise(content, mimeType), nil
}

// DefaultRegistry registers the plain text, markdown, HTML and PDF normalisers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&PlaintextNormaliser{})
	r.Register(&MarkdownNormaliser{})
	r.Register(&HTMLNormaliser{})
	r.Register(&PDFNormaliser{})
	return r
}

// baseMediaType lowercases a Content-Type value and drops its parameters.
func baseMediaType(value string) string {
	if mediaType, _, err := mime.ParseMediaType(value); err == nil {
		return mediaType
	}
	value, _, _ = strings.Cut(value, ";")
	return strings.ToLower(strings.TrimSpace(value))
}

// mediaTypeMatches reports whether pattern ("text/plain", "text/*" or "*/*")
// covers mediaType.
func mediaTypeMatches(pattern, mediaType string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	switch {
	case pattern == "*/*", pattern == mediaType:
		return true
	case strings.HasSuffix(pattern, "/*"):
		return strings.HasPrefix(mediaType, strings.TrimSuffix(pattern, "*"))
	}
	return false
}
