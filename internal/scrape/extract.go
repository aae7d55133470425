package scrape

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-shiori/dom"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

type PageType string

const (
	PageHome      PageType = "home"
	PageAbout     PageType = "about"
	PageTeam      PageType = "team"
	PageDonate    PageType = "donate"
	PageVolunteer PageType = "volunteer"
	PageContact   PageType = "contact"
	PageOther     PageType = "other"
)

const maxCTAs = 10

var pageKeywords = []struct {
	t     PageType
	words []string
}{
	{PageAbout, []string{"about", "mission", "who-we-are", "who we are", "our story", "history"}},
	{PageTeam, []string{"team", "staff", "leadership", "board", "people"}},
	{PageDonate, []string{"donate", "give", "giving", "support-us", "support us"}},
	{PageVolunteer, []string{"volunteer", "get-involved", "get involved"}},
	{PageContact, []string{"contact"}},
}

var ctaPattern = regexp.MustCompile(`(?i)\b(donate|volunteer|give|join|contact|subscribe)\b`)

// Classify derives a page type from the URL path, falling back to the title.
func Classify(path, title string) PageType {
	p := strings.ToLower(strings.Trim(path, "/"))
	if p == "" || p == "index.html" || p == "home" {
		return PageHome
	}
	for _, src := range []string{p, strings.ToLower(title)} {
		for _, k := range pageKeywords {
			for _, w := range k.words {
				if strings.Contains(src, w) {
					return k.t
				}
			}
		}
	}
	return PageOther
}

func extract(body []byte, pageURL *url.URL, maxText int) (Page, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return Page{}, err
	}
	// Readability prunes navigation and buttons, so CTAs are collected first.
	ctas := findCTAs(doc)

	article, err := readability.FromDocument(doc, pageURL)
	if err != nil {
		return Page{}, err
	}
	title := collapse(article.Title)
	return Page{
		URL:      pageURL.String(),
		PageType: Classify(pageURL.Path, title),
		Title:    title,
		Excerpt:  collapse(article.Excerpt),
		Text:     truncateRunes(collapse(article.TextContent), maxText),
		CTAs:     ctas,
	}, nil
}

func findCTAs(doc *html.Node) []string {
	out := []string{}
	seen := map[string]bool{}
	var nodes []*html.Node
	nodes = append(nodes, dom.GetElementsByTagName(doc, "a")...)
	nodes = append(nodes, dom.GetElementsByTagName(doc, "button")...)
	for _, n := range nodes {
		text := collapse(dom.TextContent(n))
		if text == "" || len(text) > 80 || !ctaPattern.MatchString(text) {
			continue
		}
		key := strings.ToLower(text)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, text)
		if len(out) == maxCTAs {
			break
		}
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
