package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// decodePDF extracts the text of every page, one page per line group.
func decodePDF(content []byte) (string, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(content), conf)
	if err != nil {
		return "", fmt.Errorf("pdfcpu read: %w", err)
	}

	var sb strings.Builder
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		text, err := pageText(ctx, pageNr)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", pageNr, err)
		}
		if text == "" {
			continue
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// pageText extracts text from a single page content stream.
func pageText(ctx *model.Context, pageNr int) (string, error) {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return textFromStream(data), nil
}

// textFromStream interprets the text-showing operators of a content stream.
// Operands are collected until the operator that consumes them, so the
// layout of lines in the stream does not matter.
func textFromStream(data []byte) string {
	var sb strings.Builder
	var operands []string

	sc := &contentScanner{data: data}
	for {
		tok, ok := sc.next()
		if !ok {
			break
		}
		if tok.kind == tokenString {
			operands = append(operands, tok.text)
			continue
		}
		if tok.kind != tokenOperator {
			continue
		}

		switch tok.text {
		// (text) Tj  and  [(text) -100 (more)] TJ
		case "Tj", "TJ":
			for _, op := range operands {
				sb.WriteString(op)
			}
		// (text) '  and  aw ac (text) "  move to the next line first
		case "'", `"`:
			sb.WriteByte('\n')
			for _, op := range operands {
				sb.WriteString(op)
			}
		case "Td", "TD":
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case "T*":
			sb.WriteByte('\n')
		case "ID":
			sc.skipInlineImage()
		}
		operands = operands[:0]
	}

	return cleanPDFText(sb.String())
}

type tokenKind int

const (
	tokenOther tokenKind = iota
	tokenString
	tokenOperator
)

type token struct {
	kind tokenKind
	text string
}

// contentScanner splits a content stream into PDF lexical tokens.
type contentScanner struct {
	data []byte
	pos  int
}

func isPDFSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isPDFDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (s *contentScanner) next() (token, bool) {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch {
		case isPDFSpace(c):
			s.pos++
		case c == '%':
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
		case c == '(':
			return token{kind: tokenString, text: decodePDFString(s.literal())}, true
		case c == '<':
			if s.pos+1 < len(s.data) && s.data[s.pos+1] == '<' {
				s.pos += 2
				return token{kind: tokenOther}, true
			}
			return token{kind: tokenString, text: s.hex()}, true
		case c == '/':
			s.pos++
			s.regular()
			return token{kind: tokenOther}, true
		case isPDFDelimiter(c):
			s.pos++
			return token{kind: tokenOther}, true
		default:
			word := s.regular()
			if isPDFNumber(word) {
				return token{kind: tokenOther, text: word}, true
			}
			return token{kind: tokenOperator, text: word}, true
		}
	}
	return token{}, false
}

// regular consumes a run of regular characters.
func (s *contentScanner) regular() string {
	start := s.pos
	for s.pos < len(s.data) && !isPDFSpace(s.data[s.pos]) && !isPDFDelimiter(s.data[s.pos]) {
		s.pos++
	}
	return string(s.data[start:s.pos])
}

// literal consumes a parenthesized string and returns its raw bytes without
// the outer parentheses. Escapes are kept for decodePDFString; unescaped
// parentheses nest.
func (s *contentScanner) literal() []byte {
	s.pos++
	start := s.pos
	depth := 1
	for s.pos < len(s.data) {
		switch s.data[s.pos] {
		case '\\':
			s.pos++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				raw := s.data[start:s.pos]
				s.pos++
				return raw
			}
		}
		s.pos++
	}
	return s.data[start:]
}

// hex consumes a <...> string. A trailing odd digit is padded with zero.
func (s *contentScanner) hex() string {
	s.pos++
	var digits []byte
	for s.pos < len(s.data) && s.data[s.pos] != '>' {
		if c := s.data[s.pos]; unhex(c) >= 0 {
			digits = append(digits, c)
		}
		s.pos++
	}
	s.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	for i := range out {
		out[i] = byte(unhex(digits[2*i])<<4 | unhex(digits[2*i+1]))
	}
	if len(out) >= 2 && out[0] == 0xFE && out[1] == 0xFF {
		return decodeUTF16BE(out[2:])
	}
	return string(out)
}

// skipInlineImage moves past binary inline image data up to its EI operator.
func (s *contentScanner) skipInlineImage() {
	for s.pos+2 <= len(s.data) {
		if s.data[s.pos] == 'E' && s.data[s.pos+1] == 'I' &&
			s.pos > 0 && isPDFSpace(s.data[s.pos-1]) &&
			(s.pos+2 == len(s.data) || isPDFSpace(s.data[s.pos+2])) {
			s.pos += 2
			return
		}
		s.pos++
	}
	s.pos = len(s.data)
}

func unhex(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

func isPDFNumber(word string) bool {
	if word == "" {
		return false
	}
	for i := 0; i < len(word); i++ {
		c := word[i]
		if (c < '0' || c > '9') && c != '.' && !(i == 0 && (c == '-' || c == '+')) {
			return false
		}
	}
	return true
}

func decodeUTF16BE(b []byte) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
	}
	return string(utf16.Decode(units))
}

// decodePDFString handles the escape sequences of PDF literal strings.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		case '\n':
			// line continuation
		case '\r':
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
		default:
			if raw[i] < '0' || raw[i] > '7' {
				sb.WriteByte(raw[i])
				continue
			}
			// Octal escape, up to three digits (e.g. \040 for space).
			val := int(raw[i] - '0')
			for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}

// cleanPDFText keeps line breaks, collapses other whitespace runs and drops
// non-printable runes.
func cleanPDFText(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		var sb strings.Builder
		prevSpace := false
		for _, r := range line {
			switch {
			case unicode.IsSpace(r):
				if !prevSpace && sb.Len() > 0 {
					sb.WriteByte(' ')
					prevSpace = true
				}
			case unicode.IsPrint(r):
				sb.WriteRune(r)
				prevSpace = false
			}
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n")
}
