// Package extract turns raw document bytes (PDF, DOCX, HTML, XLSX, plain text)
// into plain text or row sets. A failing page or paragraph is skipped and the
// rest of the document is kept.
package extract

import (
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind is a document format the extractors understand.
type Kind string

const (
	KindPDF     Kind = "pdf"
	KindDOCX    Kind = "docx"
	KindHTML    Kind = "html"
	KindXLSX    Kind = "xlsx"
	KindPlain   Kind = "plain"
	KindUnknown Kind = "unknown"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Detect classifies content by its declared Content-Type. Generic or missing
// types fall back to byte sniffing and then to the file extension of name.
func Detect(contentType string, content []byte, name string) Kind {
	if k := kindFromMIME(contentType); k != KindUnknown {
		return k
	}
	if len(content) > 0 {
		if k := kindFromMIME(mimetype.Detect(content).String()); k != KindUnknown {
			return k
		}
	}
	return kindFromExt(strings.ToLower(path.Ext(name)))
}

func kindFromMIME(contentType string) Kind {
	if contentType == "" {
		return KindUnknown
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return KindUnknown
	}
	switch mt {
	case mimePDF, "application/x-pdf":
		return KindPDF
	case mimeDOCX:
		return KindDOCX
	case mimeXLSX:
		return KindXLSX
	case "text/html", "application/xhtml+xml":
		return KindHTML
	case "text/plain", "text/markdown":
		return KindPlain
	}
	return KindUnknown
}

func kindFromExt(ext string) Kind {
	switch ext {
	case ".pdf":
		return KindPDF
	case ".docx":
		return KindDOCX
	case ".xlsx":
		return KindXLSX
	case ".html", ".htm":
		return KindHTML
	case ".txt", ".md":
		return KindPlain
	}
	return KindUnknown
}

// Text extracts plain text from a binary or text document of the given kind.
// HTML and XLSX are handled by ParseHTML and ReadSheetRows.
func Text(kind Kind, content []byte) (string, error) {
	switch kind {
	case KindPDF:
		return extractPDF(content)
	case KindDOCX:
		return extractDOCX(content)
	case KindPlain:
		return extractPlain(content)
	}
	return "", fmt.Errorf("no text extractor for %s", kind)
}
