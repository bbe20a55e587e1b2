package corpus

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/japaniel/livyfreq/pkg/livy"
)

// Section markers like [1], [2] are editorial numbering, not Livy's words.
var reSectionMarker = regexp.MustCompile(`\[\d+\]`)

// Document is the plain text of one page.
type Document struct {
	Title string
	Text  string
}

// Extractor turns a raw book page into cleaned plain text.
type Extractor struct {
	Logger *logrus.Entry
}

// NewExtractor returns an Extractor logging through logger (or a default component logger).
func NewExtractor(logger *logrus.Entry) *Extractor {
	if logger == nil {
		logger = logrus.WithField("component", "extractor")
	}
	return &Extractor{Logger: logger}
}

// Extract runs readability over the page and falls back to a full-page text walk when
// readability fails or finds no text. The result has section markers removed and whitespace
// collapsed to single spaces.
func (e *Extractor) Extract(content []byte, pageURL *url.URL) (Document, error) {
	var doc Document
	article, err := readability.FromReader(bytes.NewReader(content), pageURL)
	if err == nil {
		doc.Title = strings.TrimSpace(article.Title)
		if article.Node != nil {
			doc.Text = nodeText(article.Node)
		}
	} else {
		e.Logger.WithError(err).Debug("Readability failed, using full page text")
	}

	if strings.TrimSpace(doc.Text) == "" {
		title, text, err := pageText(bytes.NewReader(content))
		if err != nil {
			return Document{}, fmt.Errorf("parsing error: %w", err)
		}
		doc.Text = text
		if doc.Title == "" {
			doc.Title = title
		}
	}
	doc.Text = CleanText(doc.Text)
	return doc, nil
}

// CleanText removes section markers and collapses whitespace.
func CleanText(text string) string {
	text = reSectionMarker.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// nodeText collects the text under n. Unlike readability's TextContent it keeps a space
// between text nodes and at line breaks, so "ausim<br>nunc" stays two words.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "br", "hr":
				sb.WriteByte(' ')
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// pageText walks the whole document and collects text outside script and style elements.
func pageText(body io.Reader) (title, text string, err error) {
	tokenizer := html.NewTokenizer(body)
	var textBuilder strings.Builder
	inScript := false
	inStyle := false
	inTitle := false

	for {
		tokenType := tokenizer.Next()

		switch tokenType {
		case html.ErrorToken:
			if tokenizer.Err() == io.EOF {
				return title, textBuilder.String(), nil
			}
			return "", "", tokenizer.Err()

		case html.StartTagToken:
			switch tokenizer.Token().Data {
			case "script":
				inScript = true
			case "style":
				inStyle = true
			case "title":
				inTitle = true
			}

		case html.EndTagToken:
			switch tokenizer.Token().Data {
			case "script":
				inScript = false
			case "style":
				inStyle = false
			case "title":
				inTitle = false
			}

		case html.TextToken:
			data := tokenizer.Token().Data
			if inTitle {
				title = strings.TrimSpace(data)
				continue
			}
			if !inScript && !inStyle {
				textBuilder.WriteString(data)
				textBuilder.WriteByte(' ')
			}
		}
	}
}

// ExtractReport lists extracted books with their token counts and the books without a raw page.
type ExtractReport struct {
	Words   map[string]int
	Missing []string
}

// ExtractAll converts every downloaded page in rawDir into a text file in store.
func (e *Extractor) ExtractAll(books []Book, rawDir string, store *TextStore) (ExtractReport, error) {
	report := ExtractReport{Words: make(map[string]int)}
	for _, b := range books {
		log := e.Logger.WithField("book_id", b.BookID)
		content, err := os.ReadFile(filepath.Join(rawDir, RawFileName(b.BookID)))
		if err != nil {
			if os.IsNotExist(err) {
				log.Warn("Raw page not found, skipping")
				report.Missing = append(report.Missing, b.BookID)
				continue
			}
			return report, fmt.Errorf("read raw page %s: %w", b.BookID, err)
		}
		pageURL := &url.URL{Scheme: "file", Path: "/" + b.URLPath}
		doc, err := e.Extract(content, pageURL)
		if err != nil {
			return report, fmt.Errorf("extract %s: %w", b.BookID, err)
		}
		if err := store.Save(b.BookID, doc.Text); err != nil {
			return report, err
		}
		n := len(livy.Tokenize(doc.Text))
		report.Words[b.BookID] = n
		log.WithField("words", n).Info("Extracted")
	}
	return report, nil
}
