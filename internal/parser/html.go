package parser

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTMLParser handles HTML manuscripts. Every heading or paragraph-like
// element becomes a text block and <br> starts a new line. <ruby> markup is
// turned back into [base:gloss] annotations so it is typeset like any other
// ruby.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*Manuscript, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	ms := &Manuscript{
		Title: baseTitle(filename, ".html", ".htm"),
	}
	if title := findTitle(doc); title != "" {
		ms.Title = title
	}

	var blocks []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav", "footer", "header", "blockquote":
				return
			case "h1", "h2", "h3", "h4", "h5", "h6", "p", "li", "td":
				blocks = append(blocks, textContent(n))
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	body := findBody(doc)
	if body != nil {
		walk(body)
	} else {
		walk(doc)
	}

	ms.Text = joinBlocks(blocks)
	return ms, nil
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			buf.WriteString(strings.ReplaceAll(n.Data, "\n", ""))
			return
		case n.Type == html.ElementNode && n.Data == "br":
			buf.WriteByte('\n')
			return
		case n.Type == html.ElementNode && n.Data == "ruby":
			buf.WriteString(rubyAnnotation(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

// rubyAnnotation renders <ruby>base<rp>(</rp><rt>gloss</rt><rp>)</rp></ruby>
// as [base:gloss]. A ruby element without <rt> yields its plain text.
func rubyAnnotation(n *html.Node) string {
	var base, gloss strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.ElementNode && c.Data == "rt":
			gloss.WriteString(textContent(c))
		case c.Type == html.ElementNode && c.Data == "rp":
		case c.Type == html.ElementNode && c.Data == "rb":
			base.WriteString(textContent(c))
		case c.Type == html.TextNode:
			base.WriteString(strings.TrimSpace(c.Data))
		default:
			base.WriteString(textContent(c))
		}
	}
	if gloss.Len() == 0 {
		return base.String()
	}
	return "[" + base.String() + ":" + gloss.String() + "]"
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
