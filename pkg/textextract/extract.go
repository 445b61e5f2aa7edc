// Package textextract pulls plain text out of uploaded documents.
package textextract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

type ExtractedText struct {
	Content string
	Pages   int
}

var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".json": "application/json",
}

// SupportedTypes lists accepted file extensions.
func SupportedTypes() []string {
	return []string{".pdf", ".docx", ".txt", ".md", ".csv", ".json"}
}

// DetectType returns the canonical extension of a file from its name, or
// from its content type when the name carries none. The result is empty for
// unsupported files.
func DetectType(fileName, contentType string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if _, ok := contentTypes[ext]; ok {
		return ext
	}
	ct := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	for e, t := range contentTypes {
		if strings.EqualFold(t, ct) {
			return e
		}
	}
	return ""
}

// ContentType returns the MIME type for a canonical extension.
func ContentType(ext string) string {
	if t, ok := contentTypes[ext]; ok {
		return t
	}
	return "application/octet-stream"
}

func Extract(data io.ReaderAt, size int64, fileType string) (*ExtractedText, error) {
	switch strings.ToLower(fileType) {
	case ".pdf", "pdf", "application/pdf":
		return extractPDF(data, size)
	case ".docx", "docx", contentTypes[".docx"]:
		return extractDOCX(data, size)
	case ".txt", ".md", ".csv", ".json", "txt", "text/plain":
		return extractTXT(data, size)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
}

// Excerpt returns at most maxChars of whitespace-collapsed text from the
// document, cut on a rune boundary.
func Excerpt(data []byte, fileType string, maxChars int) (string, error) {
	text, err := Extract(bytes.NewReader(data), int64(len(data)), fileType)
	if err != nil {
		return "", err
	}
	s := strings.Join(strings.Fields(text.Content), " ")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	if len(s) <= maxChars {
		return s, nil
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], nil
}

func extractPDF(data io.ReaderAt, size int64) (*ExtractedText, error) {
	reader, err := pdf.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}

	return &ExtractedText{Content: buf.String(), Pages: numPages}, nil
}

func extractDOCX(data io.ReaderAt, size int64) (*ExtractedText, error) {
	reader, err := zip.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}

	for _, f := range reader.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read document.xml: %w", err)
		}
		return &ExtractedText{Content: stripXMLTags(string(content)), Pages: 1}, nil
	}
	return nil, fmt.Errorf("open DOCX: word/document.xml not found")
}

func extractTXT(data io.ReaderAt, size int64) (*ExtractedText, error) {
	buf := make([]byte, size)
	_, err := data.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read TXT: %w", err)
	}
	return &ExtractedText{Content: string(bytes.TrimSpace(buf)), Pages: 1}, nil
}

func stripXMLTags(s string) string {
	var result strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			result.WriteRune(' ')
		case !inTag:
			result.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(result.String()), " ")
}
