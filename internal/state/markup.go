package state

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripMarkup turns an HTML chat bubble into plain text. Line breaks and paragraphs
// become newlines and list items keep a "- " marker so downstream scoring still sees
// them as bullets. Text without markup is returned unchanged.
func StripMarkup(text string) string {
	if !strings.Contains(text, "<") {
		return text
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return text
	}
	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("li").Each(func(_ int, sel *goquery.Selection) {
		sel.PrependHtml("- ")
		sel.AppendHtml("\n")
	})
	doc.Find("p, div").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
