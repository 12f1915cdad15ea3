package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// openZip opens an in-memory OOXML package.
func openZip(content []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	return zr, nil
}

// decodeDocx reads word/document.xml and returns one line per paragraph.
func decodeDocx(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("%w: word/document.xml", errMissingPart)
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	paragraphs, err := paragraphText(rc)
	if err != nil {
		return "", fmt.Errorf("parse document.xml: %w", err)
	}
	return strings.Join(paragraphs, "\n"), nil
}

var slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// decodePptx reads every ppt/slides/slideN.xml in slide order.
func decodePptx(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}

	type slide struct {
		n    int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideNameRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, file: f})
	}
	if len(slides) == 0 {
		return "", errNoSlides
	}
	slices.SortFunc(slides, func(a, b slide) int { return a.n - b.n })

	var sb strings.Builder
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", fmt.Errorf("open slide %d: %w", s.n, err)
		}
		paragraphs, err := paragraphText(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("parse slide %d: %w", s.n, err)
		}
		for _, p := range paragraphs {
			sb.WriteString(p)
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

// paragraphText walks WordprocessingML or DrawingML and collects the text
// runs (<w:t>, <a:t>) of each <p> element. Tabs and breaks inside a
// paragraph become a tab and a newline. Empty paragraphs are dropped.
func paragraphText(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)
	var paragraphs []string
	var current strings.Builder
	depth := 0
	inText := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if depth == 0 {
					current.Reset()
				}
				depth++
			case "t":
				inText = depth > 0
			case "tab":
				if depth > 0 {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if depth > 0 {
					current.WriteByte('\n')
				}
			}

		case xml.CharData:
			if inText {
				current.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if depth == 0 {
					continue
				}
				depth--
				if depth == 0 {
					if text := strings.TrimSpace(current.String()); text != "" {
						paragraphs = append(paragraphs, text)
					}
				}
			}
		}
	}
	return paragraphs, nil
}
