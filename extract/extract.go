package extract

import (
	"fmt"
	"slices"
	"strings"

	"github.com/poiesic/plantdesk/core"
)

// decoder converts raw file bytes into text.
type decoder func(content []byte) (string, error)

var decoders = map[string]decoder{
	"txt":  decodeText,
	"md":   decodeText,
	"pdf":  decodePDF,
	"docx": decodeDocx,
	"doc":  decodeDocx,
	"pptx": decodePptx,
	"ppt":  decodePptx,
	"xlsx": decodeXlsx,
	"xls":  decodeXlsx,
	"csv":  decodeCSV,
}

// unimplemented lists extensions the upload form accepts but no decoder handles.
var unimplemented = []string{"hwp"}

// Extract returns the trimmed text of content, dispatching on extension.
// Unknown or unimplemented extensions yield *core.UnsupportedFormatError.
// Decoder failures, including panics, yield *core.ExtractionError.
// A result that is empty after trimming is an extraction failure.
func Extract(content []byte, extension string) (text string, err error) {
	ext := normalize(extension)
	dec, ok := decoders[ext]
	if !ok {
		return "", &core.UnsupportedFormatError{Extension: ext}
	}

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &core.ExtractionError{Extension: ext, Err: fmt.Errorf("decoder panic: %v", r)}
		}
	}()

	raw, err := dec(content)
	if err != nil {
		return "", &core.ExtractionError{Extension: ext, Err: err}
	}

	text = strings.TrimSpace(raw)
	if text == "" {
		return "", &core.ExtractionError{Extension: ext, Err: errNoText}
	}
	return text, nil
}

// Supported returns the extensions that have a decoder, sorted.
func Supported() []string {
	exts := make([]string, 0, len(decoders))
	for ext := range decoders {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Accepts reports whether the upload form should accept the extension.
// This is wider than Supported: unimplemented formats are accepted and
// rejected later with a specific error.
func Accepts(extension string) bool {
	ext := normalize(extension)
	if _, ok := decoders[ext]; ok {
		return true
	}
	return slices.Contains(unimplemented, ext)
}

func normalize(extension string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(extension), "."))
}
