package crawl

import (
	"bytes"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	readabilityMinWords = 50
	maxLinksPerPage     = 200
)

// extractContent prefers the readability article rendered as markdown and
// falls back to a DOM text walk for short or unusual pages.
func extractContent(data []byte, pageURL string) (title, content string) {
	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(bytes.NewReader(data), parsedURL)
	if err == nil && article.Node != nil {
		if md, mdErr := htmltomarkdown.ConvertNode(article.Node); mdErr == nil {
			text := normalizeContent(string(md))
			if len(strings.Fields(text)) >= readabilityMinWords {
				return article.Title(), text
			}
		}
	}

	node, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", ""
	}
	return extractTitle(node), extractReadableText(node)
}

func extractTitle(node *html.Node) string {
	doc := goquery.NewDocumentFromNode(node)
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func extractReadableText(node *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "script", "style", "noscript", "nav", "footer", "header", "aside", "form", "template", "title":
				return
			case "h1", "h2", "h3", "h4", "h5", "h6", "p", "div", "section", "article", "li", "pre", "blockquote":
				b.WriteString("\n\n")
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				b.WriteString(text)
				b.WriteString(" ")
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return normalizeContent(b.String())
}

func normalizeContent(content string) string {
	lines := strings.Split(content, "\n")
	cleaned := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if !blank {
				cleaned = append(cleaned, "")
				blank = true
			}
			continue
		}
		blank = false
		cleaned = append(cleaned, trimmed)
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

// extractLinks returns unique same-host links in document order. Fragments
// and query strings are dropped.
func extractLinks(data []byte, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return true
		}
		resolved, err := base.Parse(href)
		if err != nil || resolved.Host != base.Host {
			return true
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return true
		}
		resolved.Fragment = ""
		resolved.RawQuery = ""
		canonical := resolved.String()
		if !seen[canonical] {
			seen[canonical] = true
			links = append(links, canonical)
		}
		return len(links) < maxLinksPerPage
	})
	return links
}
