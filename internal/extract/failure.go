// Package extract provides the PDF and OCR text extractors and the registry that
// selects one by file extension.
package extract

import (
	"errors"
	"fmt"
)

// Client-facing failure messages.
const (
	MsgNoPDFText       = "Error: No text extracted. Try an image-based PDF."
	MsgNoImageText     = "Error: No text found in image."
	MsgUnsupportedType = "Unsupported file type. Upload a PDF, JPG, JPEG, or PNG file."
	msgPrefixPDF       = "Error reading PDF: "
	msgPrefixImage     = "Error extracting text from image: "
)

// ErrUnsupportedType is returned by the registry for extensions it cannot handle.
var ErrUnsupportedType = errors.New(MsgUnsupportedType)

// Failure reports that a document yielded no usable text.
// Message is safe to return to clients; Cause keeps the underlying error.
type Failure struct {
	Message string
	Cause   error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

func pdfFailure(err error) *Failure {
	return &Failure{Message: msgPrefixPDF + err.Error(), Cause: err}
}

func imageFailure(err error) *Failure {
	return &Failure{Message: msgPrefixImage + err.Error(), Cause: err}
}

// panicError converts a recovered parser panic into an error.
func panicError(recovered any) error {
	if err, ok := recovered.(error); ok {
		return err
	}

	return fmt.Errorf("%v", recovered)
}
