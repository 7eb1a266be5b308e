// Package docgen renders filled document trees into downloadable files.
//
// A filled document is the JSON object produced by the template-filling step:
// a title, an ordered list of sections with content and optional clauses, and
// an optional signature block. The DOCX renderer emits a minimal
// WordprocessingML package; PDF output is not supported.
package docgen

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Supported output formats.
const (
	FormatDOCX = "docx"
	FormatPDF  = "pdf"
)

// ErrPDFNotSupported is returned when PDF output is requested. Only DOCX
// rendering is implemented.
var ErrPDFNotSupported = errors.New("pdf generation is not supported")

// ErrUnknownFormat is returned for formats other than docx and pdf.
var ErrUnknownFormat = errors.New("unknown document format")

// Render converts a filled document tree into file bytes in the requested
// format.
func Render(filled json.RawMessage, format string) ([]byte, error) {
	switch format {
	case FormatDOCX:
		return RenderDOCX(filled)
	case FormatPDF:
		return nil, ErrPDFNotSupported
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}
