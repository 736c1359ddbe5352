package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

// ErrExtraction marks a recognized file format that failed to parse.
var ErrExtraction = errors.New("failed to extract file contents")

// extractText returns the best-effort plain-text contents of an uploaded
// file, dispatching on the lowercase extension of its declared name. Unknown
// extensions fall back to a raw byte decode, which may produce garbage for
// binary formats.
func extractText(ctx context.Context, name string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		docs, err := documentloaders.NewCSV(bytes.NewReader(data)).Load(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrExtraction, err)
		}
		return joinDocuments(docs), nil
	case ".pdf":
		docs, err := documentloaders.NewPDF(bytes.NewReader(data), int64(len(data))).Load(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrExtraction, err)
		}
		return joinDocuments(docs), nil
	case ".html", ".htm":
		return htmlText(data)
	case ".docx":
		return docxText(data)
	default:
		// .txt, .md and anything else: raw byte decode
		return string(data), nil
	}
}

func joinDocuments(docs []schema.Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.PageContent)
	}

	return strings.Join(parts, "\n")
}

// htmlText strips layout from an HTML document, keeping the readable text.
func htmlText(data []byte) (string, error) {
	pageURL, _ := url.Parse("https://localhost/upload")
	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	return article.TextContent, nil
}

// docxText unpacks the main document part of a docx archive and collects the
// paragraph text.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrExtraction, err)
		}
		defer rc.Close()

		return docxParagraphs(rc)
	}

	return "", fmt.Errorf("%w: no document part in archive", ErrExtraction)
}

func docxParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrExtraction, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
			if t.Name.Local == "p" {
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return strings.TrimSpace(sb.String()), nil
}
