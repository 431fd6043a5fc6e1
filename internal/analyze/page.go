package analyze

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxTextRunes bounds the body preview sent to the classifier.
const maxTextRunes = 500

// Page is what we keep of a fetched document.
type Page struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Keywords    string `json:"keywords"`
	H1          string `json:"h1"`
	Text        string `json:"text"`
}

// chrome elements whose text never describes the page
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
	atom.Aside:    true,
	atom.Noscript: true,
}

// ExtractPage parses an HTML document and pulls out the fields the
// classifier looks at.
func ExtractPage(url string, r io.Reader) (Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}

	p := Page{URL: url}
	var (
		text              strings.Builder
		haveTitle, haveH1 bool
		haveDesc, haveKw  bool
	)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if !haveTitle {
					p.Title = strings.TrimSpace(nodeText(n))
					haveTitle = true
				}
			case atom.H1:
				if !haveH1 {
					p.H1 = strings.TrimSpace(nodeText(n))
					haveH1 = true
				}
			case atom.Meta:
				switch strings.ToLower(attr(n, "name")) {
				case "description":
					if !haveDesc {
						p.Description = strings.TrimSpace(attr(n, "content"))
						haveDesc = true
					}
				case "keywords":
					if !haveKw {
						p.Keywords = strings.TrimSpace(attr(n, "content"))
						haveKw = true
					}
				}
			}
			if skipped[n.DataAtom] {
				return
			}
		}
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	p.Text = truncateRunes(strings.Join(strings.Fields(text.String()), " "), maxTextRunes)
	return p, nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
