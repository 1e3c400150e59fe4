package crawler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/seo-audit/internal/audit"
)

var invalidJSONLD = json.RawMessage(`{"error":"Invalid JSON"}`)

// extractPage fills the content fields of rec from an HTML body. Relative
// references resolve against base.
func extractPage(rec *audit.PageRecord, body []byte, base *url.URL) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}

	rec.Title = cleanText(doc.Find("title").First().Text())
	rec.Headings = extractHeadings(doc)
	if h1 := rec.Headings.Level(1); len(h1) > 0 {
		rec.H1 = h1[0].Text
	}
	rec.Links = extractLinks(doc, base)
	rec.Images = extractImages(doc, base)
	rec.SEO = extractSEO(doc, base)
	rec.Description = metaDescription(doc)
	return nil
}

func extractHeadings(doc *goquery.Document) audit.Headings {
	var headings audit.Headings
	for level := 1; level <= 6; level++ {
		doc.Find(fmt.Sprintf("h%d", level)).Each(func(_ int, sel *goquery.Selection) {
			id, _ := sel.Attr("id")
			headings[level-1] = append(headings[level-1], audit.Heading{
				Text: cleanText(sel.Text()),
				ID:   id,
			})
		})
	}
	return headings
}

// extractLinks keeps http(s) anchors only; mailto:, tel: and javascript:
// targets are not pages.
func extractLinks(doc *goquery.Document, base *url.URL) []audit.Link {
	var links []audit.Link
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		resolved, ok := resolve(base, href)
		if !ok || !isHTTPScheme(resolved) {
			return
		}
		rel, _ := sel.Attr("rel")
		target, _ := sel.Attr("target")
		links = append(links, audit.Link{
			URL:      resolved.String(),
			Text:     cleanText(sel.Text()),
			Rel:      strings.TrimSpace(rel),
			Target:   strings.TrimSpace(target),
			External: !sameHost(resolved, base),
		})
	})
	return links
}

func extractImages(doc *goquery.Document, base *url.URL) []audit.Image {
	var images []audit.Image
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if resolved, ok := resolve(base, src); ok {
			src = resolved.String()
		}
		alt, _ := sel.Attr("alt")
		loading, _ := sel.Attr("loading")
		images = append(images, audit.Image{
			Src:     src,
			Alt:     strings.TrimSpace(alt),
			Width:   dimension(sel, "width"),
			Height:  dimension(sel, "height"),
			Loading: strings.ToLower(strings.TrimSpace(loading)),
		})
	})
	return images
}

func extractSEO(doc *goquery.Document, base *url.URL) audit.SEOData {
	seo := audit.SEOData{
		OGTags:      map[string]string{},
		TwitterTags: map[string]string{},
	}

	doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		name := strings.ToLower(strings.TrimSpace(sel.AttrOr("name", "")))
		property := strings.ToLower(strings.TrimSpace(sel.AttrOr("property", "")))
		content := strings.TrimSpace(sel.AttrOr("content", ""))
		switch {
		case name == "robots":
			seo.Robots = content
		case name == "viewport":
			seo.Viewport = content
		case strings.HasPrefix(property, "og:"):
			seo.OGTags[property] = content
		case strings.HasPrefix(name, "og:"):
			seo.OGTags[name] = content
		case strings.HasPrefix(name, "twitter:"):
			seo.TwitterTags[name] = content
		case strings.HasPrefix(property, "twitter:"):
			seo.TwitterTags[property] = content
		}
	})

	doc.Find("link[rel][href]").Each(func(_ int, sel *goquery.Selection) {
		rels := strings.Fields(strings.ToLower(sel.AttrOr("rel", "")))
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		for _, rel := range rels {
			switch rel {
			case "canonical":
				if seo.Canonical == "" {
					seo.Canonical = resolveOrRaw(base, href)
				}
			case "amphtml":
				if seo.AMPLink == "" {
					seo.AMPLink = resolveOrRaw(base, href)
				}
			case "alternate":
				if lang, ok := sel.Attr("hreflang"); ok {
					seo.Hreflang = append(seo.Hreflang, audit.Hreflang{
						Href:     resolveOrRaw(base, href),
						Hreflang: strings.TrimSpace(lang),
					})
				}
			}
		}
	})

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := bytes.TrimSpace([]byte(sel.Text()))
		if len(raw) == 0 {
			return
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			seo.StructuredData = append(seo.StructuredData, invalidJSONLD)
			return
		}
		seo.StructuredData = append(seo.StructuredData, json.RawMessage(compact.Bytes()))
	})

	return seo
}

func metaDescription(doc *goquery.Document) string {
	var description string
	doc.Find("meta[name]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.EqualFold(strings.TrimSpace(sel.AttrOr("name", "")), "description") {
			description = strings.TrimSpace(sel.AttrOr("content", ""))
			return false
		}
		return true
	})
	return description
}

func resolve(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	if base == nil {
		return ref, ref.IsAbs()
	}
	return base.ResolveReference(ref), true
}

func resolveOrRaw(base *url.URL, href string) string {
	if resolved, ok := resolve(base, href); ok {
		return resolved.String()
	}
	return href
}

// dimension parses a width/height attribute. Values such as "100%" are
// not pixel dimensions and read as 0.
func dimension(sel *goquery.Selection, attr string) int {
	raw := strings.TrimSuffix(strings.TrimSpace(sel.AttrOr(attr, "")), "px")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
