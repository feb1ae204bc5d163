package extract

import (
	"path/filepath"
	"strings"

	"github.com/book-expert/voiceclone-service/internal/core"
)

// Registry maps lower-cased file extensions to extractors.
type Registry struct {
	byExtension map[string]core.Extractor
}

// NewRegistry routes .pdf to pdfExtractor and .jpg/.jpeg/.png to imageExtractor.
func NewRegistry(pdfExtractor, imageExtractor core.Extractor) *Registry {
	return &Registry{
		byExtension: map[string]core.Extractor{
			".pdf":  pdfExtractor,
			".jpg":  imageExtractor,
			".jpeg": imageExtractor,
			".png":  imageExtractor,
		},
	}
}

// ForFilename returns the extractor for filename's extension, or
// ErrUnsupportedType.
func (r *Registry) ForFilename(filename string) (core.Extractor, error) {
	extension := strings.ToLower(filepath.Ext(filename))

	extractor, ok := r.byExtension[extension]
	if !ok || extractor == nil {
		return nil, ErrUnsupportedType
	}

	return extractor, nil
}
