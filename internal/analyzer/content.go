package analyzer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/JakeFAU/seo-audit/internal/audit"
)

const (
	h1TitlePrefix           = 10
	lazyLoadingThreshold    = 3
	genericLinkThreshold    = 2
	externalLinkRatioLimit  = 0.5
	maxGenericLinkExamples  = 5
	thinContentMaxHeadings  = 1
	thinContentMinImages    = 2
	thinContentMinLinkCount = 5
)

var genericLinkText = regexp.MustCompile(`(?i)click here|read more|learn more|more info|details|link|download`)

// Content checks headings, content depth, images and links.
type Content struct{}

// Category implements Analyzer.
func (Content) Category() audit.Category { return audit.CategoryContent }

// Analyze implements Analyzer.
func (c Content) Analyze(ctx context.Context, page audit.PageRecord, _ Options) (audit.AnalyzerResult, error) {
	if err := ctx.Err(); err != nil {
		return audit.AnalyzerResult{}, err
	}
	f := newFindings(c.Category())
	checkHeadings(f, page)
	checkContentDepth(f, page)
	checkImages(f, page)
	checkLinks(f, page)
	return f.finish(), nil
}

func checkHeadings(f *findings, page audit.PageRecord) {
	f.weigh(3)
	h1s := page.Headings.Level(1)
	switch {
	case page.H1 == "" || len(h1s) == 0:
		f.flag("missing_h1", audit.ImpactHigh,
			"Page has no H1 heading", nil,
			"Add one H1 heading that states the page topic",
			"The H1 is the strongest on-page signal of what the page covers.")
	case len(h1s) > 1:
		texts := make([]string, 0, len(h1s))
		for _, h := range h1s {
			texts = append(texts, h.Text)
		}
		f.flag("multiple_h1", audit.ImpactMedium,
			fmt.Sprintf("Page has %d H1 headings", len(h1s)),
			map[string]any{"h1s": texts},
			"Keep a single H1 heading",
			"Several H1s blur which topic the page is about.")
	}

	if page.H1 != "" && page.Title != "" {
		h1 := strings.ToLower(page.H1)
		title := strings.ToLower(page.Title)
		if !strings.Contains(h1, prefix(title, h1TitlePrefix)) && !strings.Contains(title, prefix(h1, h1TitlePrefix)) {
			f.flag("h1_different_from_title", audit.ImpactMedium,
				"H1 and title describe different things",
				map[string]any{"h1": page.H1, "title": page.Title},
				"Align the H1 with the page title",
				"A matching H1 and title reinforce the page topic.")
		}
	}

	var levels []int
	for level := 1; level <= 6; level++ {
		if len(page.Headings.Level(level)) > 0 {
			levels = append(levels, level)
		}
	}
	for i := 0; i+1 < len(levels); i++ {
		if levels[i+1]-levels[i] > 1 {
			f.flag("skipped_heading_level", audit.ImpactLow,
				"Heading levels skip a rank",
				map[string]any{"heading_levels": levels},
				"Nest headings one level at a time",
				"A gap in the heading outline confuses assistive technology and document structure.")
			return
		}
	}
}

func checkContentDepth(f *findings, page audit.PageRecord) {
	f.weigh(2)
	headings := page.Headings.Count()
	images := len(page.Images)
	links := len(page.Links)
	if headings <= thinContentMaxHeadings && images < thinContentMinImages && links < thinContentMinLinkCount {
		f.flag("thin_content", audit.ImpactHigh,
			"Page has very little structured content",
			map[string]any{"headings": headings, "images": images, "links": links},
			"Add substantive content to the page",
			"Pages with little content rarely rank.")
	}
	if len(page.SEO.StructuredData) == 0 {
		f.flag("missing_structured_data", audit.ImpactMedium,
			"Page has no structured data", nil,
			"Add JSON-LD structured data describing the page",
			"Structured data makes the page eligible for rich results.")
	}
}

func checkImages(f *findings, page audit.PageRecord) {
	f.weigh(2)
	if len(page.Images) == 0 {
		return
	}

	var noAlt, noSize []string
	notLazy := 0
	for _, img := range page.Images {
		if img.Alt == "" {
			noAlt = append(noAlt, img.Src)
		}
		if img.Width == 0 || img.Height == 0 {
			noSize = append(noSize, img.Src)
		}
		if img.Loading != "lazy" {
			notLazy++
		}
	}

	if len(noAlt) > 0 {
		f.flag("images_missing_alt", audit.ImpactMedium,
			fmt.Sprintf("%d image(s) have no alt text", len(noAlt)),
			map[string]any{"count": len(noAlt), "images": noAlt},
			"Give every image descriptive alt text",
			"Alt text is read by screen readers and by image search.")
	}
	if len(noSize) > 0 {
		f.flag("images_missing_dimensions", audit.ImpactLow,
			fmt.Sprintf("%d image(s) have no width or height", len(noSize)),
			map[string]any{"count": len(noSize), "images": noSize},
			"Set width and height on images",
			"Explicit dimensions prevent layout shift while the page loads.")
	}
	if notLazy > lazyLoadingThreshold {
		f.flag("images_not_lazy_loaded", audit.ImpactLow,
			fmt.Sprintf("%d image(s) load eagerly", notLazy),
			map[string]any{"count": notLazy},
			`Add loading="lazy" to images below the fold`,
			"Deferring off-screen images speeds up the first render.")
	}
}

func checkLinks(f *findings, page audit.PageRecord) {
	f.weigh(3)
	total := len(page.Links)
	if total == 0 {
		f.flag("no_links", audit.ImpactMedium,
			"Page has no links", nil,
			"Link to related pages on the site and to relevant sources",
			"Links let visitors and crawlers reach the rest of the site.")
		return
	}

	var (
		empty    []string
		generic  []map[string]string
		genCount int
		external int
	)
	for _, link := range page.Links {
		text := strings.TrimSpace(link.Text)
		if text == "" {
			empty = append(empty, link.URL)
		} else if genericLinkText.MatchString(text) {
			genCount++
			if len(generic) < maxGenericLinkExamples {
				generic = append(generic, map[string]string{"text": link.Text, "url": link.URL})
			}
		}
		if link.External {
			external++
		}
	}

	if len(empty) > 0 {
		f.flag("empty_link_text", audit.ImpactMedium,
			fmt.Sprintf("%d link(s) have no anchor text", len(empty)),
			map[string]any{"count": len(empty), "links": empty},
			"Give every link descriptive anchor text",
			"Anchor text tells users and crawlers what the target is.")
	}
	if genCount > genericLinkThreshold {
		f.flag("generic_link_text", audit.ImpactLow,
			fmt.Sprintf(`%d link(s) use generic anchor text such as "read more"`, genCount),
			map[string]any{"count": genCount, "examples": generic},
			"Replace generic anchor text with a description of the target",
			"Generic anchors carry no meaning out of context.")
	}
	if external > 0 && float64(external)/float64(total) > externalLinkRatioLimit {
		ratio := float64(external) / float64(total)
		f.flag("excessive_external_links", audit.ImpactMedium,
			fmt.Sprintf("%d of %d links leave the site", external, total),
			map[string]any{"external_count": external, "total_count": total, "ratio": fmt.Sprintf("%.2f", ratio)},
			"Balance outbound links with internal ones",
			"A page that mostly links away sends visitors and ranking signals off the site.")
	}
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
