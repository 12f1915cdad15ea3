// Package extract turns uploaded document bytes into plain text.
//
// Supported formats:
//   - txt, md: UTF-8 passthrough
//   - pdf: pdfcpu page content streams
//   - docx, doc: OOXML word/document.xml paragraphs
//   - pptx, ppt: OOXML slide text frames, in slide order
//   - xlsx, xls: excelize rows rendered as an aligned table
//   - csv: encoding/csv rows rendered as an aligned table
//
// Legacy binary doc/ppt/xls files are routed to the OOXML decoders and fail
// as extraction errors. hwp is accepted by the upload form but deliberately
// unimplemented.
//
// Usage:
//
//	text, err := extract.Extract(content, "pdf")
//	if errors.Is(err, core.ErrUnsupportedFormat) { ... }
package extract
