package render

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const blockSelector = "p, div, h1, h2, h3, h4, li, ul, ol, tr"

// PlainText strips markup from an HTML email body. Links keep their target in
// parentheses and block elements end with a line break.
func PlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}

	doc.Find("head, style, script").Remove()
	doc.Find("br").ReplaceWithHtml("\n")

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		text := strings.TrimSpace(s.Text())

		if href == "" || href == text {
			return
		}

		if text == "" {
			s.SetText(href)
			return
		}

		s.SetText(text + " (" + href + ")")
	})

	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return normalizeLines(doc.Text()), nil
}

func normalizeLines(text string) string {
	var lines []string
	blank := false

	for line := range strings.SplitSeq(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")

		if line == "" {
			if !blank && len(lines) > 0 {
				lines = append(lines, "")
			}
			blank = true
			continue
		}

		lines = append(lines, line)
		blank = false
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
