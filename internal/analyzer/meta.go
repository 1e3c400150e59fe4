package analyzer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/seo-audit/internal/audit"
)

const (
	titleMinLength       = 10
	titleMaxLength       = 60
	descriptionMinLength = 50
	descriptionMaxLength = 160
)

var requiredOGTags = []string{"og:title", "og:description", "og:image", "og:url"}

// Meta checks the title, description, canonical, robots and social tags.
type Meta struct{}

// Category implements Analyzer.
func (Meta) Category() audit.Category { return audit.CategoryMeta }

// Analyze implements Analyzer.
func (m Meta) Analyze(ctx context.Context, page audit.PageRecord, _ Options) (audit.AnalyzerResult, error) {
	if err := ctx.Err(); err != nil {
		return audit.AnalyzerResult{}, err
	}
	f := newFindings(m.Category())
	checkTitle(f, page)
	checkDescription(f, page)
	checkCanonical(f, page)
	checkRobotsMeta(f, page)
	checkOpenGraph(f, page)
	checkTwitterCard(f, page)
	return f.finish(), nil
}

func checkTitle(f *findings, page audit.PageRecord) {
	f.weigh(3)
	title := page.Title
	if title == "" {
		f.flag("missing_title", audit.ImpactHigh,
			"Page has no title tag", nil,
			"Add a title tag to the page",
			"Search engines show the title as the headline of the result and weigh it heavily.")
		return
	}

	length := utf8.RuneCountInString(title)
	switch {
	case length < titleMinLength:
		f.flag("title_too_short", audit.ImpactMedium,
			fmt.Sprintf("Title is shorter than %d characters", titleMinLength),
			map[string]any{"title": title, "length": length},
			"Write a longer, more descriptive title",
			"A very short title gives searchers and crawlers little context.")
	case length > titleMaxLength:
		f.flag("title_too_long", audit.ImpactLow,
			fmt.Sprintf("Title is longer than %d characters", titleMaxLength),
			map[string]any{"title": title, "length": length},
			fmt.Sprintf("Shorten the title to %d characters or fewer", titleMaxLength),
			"Long titles are cut off in search results.")
	}

	lower := strings.ToLower(title)
	if strings.Contains(lower, "untitled") || strings.Contains(lower, "new page") || title == "Home" {
		f.flag("generic_title", audit.ImpactMedium,
			"Title looks like a placeholder",
			map[string]any{"title": title},
			"Replace the placeholder title with one that describes the page",
			"A generic title does not tell anyone what the page is about.")
	}
}

func checkDescription(f *findings, page audit.PageRecord) {
	f.weigh(3)
	description := page.Description
	if description == "" {
		f.flag("missing_meta_description", audit.ImpactMedium,
			"Page has no meta description", nil,
			"Add a meta description to the page",
			"The description is often used as the result snippet and drives click-through.")
		return
	}

	length := utf8.RuneCountInString(description)
	switch {
	case length < descriptionMinLength:
		f.flag("description_too_short", audit.ImpactLow,
			fmt.Sprintf("Meta description is shorter than %d characters", descriptionMinLength),
			map[string]any{"description": description, "length": length},
			"Expand the meta description",
			"A thin snippet gives searchers little reason to click.")
	case length > descriptionMaxLength:
		f.flag("description_too_long", audit.ImpactLow,
			fmt.Sprintf("Meta description is longer than %d characters", descriptionMaxLength),
			map[string]any{"description": description, "length": length},
			fmt.Sprintf("Trim the meta description to %d characters or fewer", descriptionMaxLength),
			"Long descriptions are truncated in search results.")
	}

	lower := strings.ToLower(description)
	if strings.Contains(lower, "welcome to") || strings.Contains(lower, "this is a website") {
		f.flag("generic_description", audit.ImpactMedium,
			"Meta description is boilerplate",
			map[string]any{"description": description},
			"Write a description specific to this page",
			"Boilerplate snippets do not persuade searchers to visit.")
	}
}

func checkCanonical(f *findings, page audit.PageRecord) {
	f.weigh(2)
	canonical := page.SEO.Canonical
	if canonical == "" {
		f.flag("missing_canonical", audit.ImpactLow,
			"Page has no canonical link", nil,
			"Add a canonical link to the page",
			"A canonical link names the preferred URL when the same content is reachable at several.")
		return
	}

	u, err := url.Parse(canonical)
	if err != nil || !u.IsAbs() || u.Host == "" {
		reason := "not an absolute URL"
		if err != nil {
			reason = err.Error()
		}
		f.flag("invalid_canonical", audit.ImpactMedium,
			"Canonical link is not a valid URL",
			map[string]any{"canonical": canonical, "error": reason},
			"Point the canonical link at a valid absolute URL",
			"Search engines ignore canonical links they cannot parse.")
		return
	}

	if !sameDocument(u.String(), page.URL) {
		f.flag("non_self_canonical", audit.ImpactMedium,
			"Canonical link points at another URL",
			map[string]any{"page_url": page.URL, "canonical": canonical},
			"Confirm the canonical link is meant to point elsewhere",
			"A page that canonicalizes elsewhere asks search engines to index the other URL instead.")
	}
}

// sameDocument compares URLs ignoring a single trailing slash.
func sameDocument(a, b string) bool {
	return a == b || strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}

func checkRobotsMeta(f *findings, page audit.PageRecord) {
	f.weigh(1)
	robots := strings.ToLower(page.SEO.Robots)
	if robots == "" {
		return
	}
	none := strings.Contains(robots, "none")
	if none || strings.Contains(robots, "noindex") {
		f.flag("noindex", audit.ImpactHigh,
			"Robots meta tag blocks indexing",
			map[string]any{"robots": page.SEO.Robots},
			"Check whether the noindex directive is intended",
			"A noindex page is dropped from search results.")
	}
	if none || strings.Contains(robots, "nofollow") {
		f.flag("nofollow", audit.ImpactMedium,
			"Robots meta tag blocks link following",
			map[string]any{"robots": page.SEO.Robots},
			"Check whether the nofollow directive is intended",
			"Links on a nofollow page pass no ranking signals.")
	}
}

func checkOpenGraph(f *findings, page audit.PageRecord) {
	f.weigh(1)
	var missing []string
	for _, tag := range requiredOGTags {
		if page.SEO.OGTags[tag] == "" {
			missing = append(missing, tag)
		}
	}
	if len(missing) == 0 {
		return
	}
	f.flag("missing_og_tags", audit.ImpactLow,
		"Page lacks core Open Graph tags",
		map[string]any{"missing_tags": missing},
		"Add Open Graph tags: "+strings.Join(missing, ", "),
		"Open Graph tags control the preview shown when the page is shared.")
}

func checkTwitterCard(f *findings, page audit.PageRecord) {
	f.weigh(1)
	if page.SEO.TwitterTags["twitter:card"] != "" {
		return
	}
	f.flag("missing_twitter_card", audit.ImpactLow,
		"Page has no Twitter card markup", nil,
		"Add a twitter:card meta tag",
		"Card markup gives shared links a rich preview on X/Twitter.")
}
