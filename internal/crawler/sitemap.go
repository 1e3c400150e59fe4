package crawler

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const maxSitemapFetches = 3

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// sitemapDocument covers both <urlset> and <sitemapindex> documents.
type sitemapDocument struct {
	XMLName  xml.Name
	URLs     []sitemapLoc `xml:"url"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

func parseSitemap(body []byte) (pages []string, nested []string, err error) {
	var doc sitemapDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, nil, err
	}
	for _, u := range doc.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			pages = append(pages, loc)
		}
	}
	for _, sm := range doc.Sitemaps {
		if loc := strings.TrimSpace(sm.Loc); loc != "" {
			nested = append(nested, loc)
		}
	}
	return pages, nested, nil
}

// loadSitemapPages fetches the listed sitemaps, following sitemap indexes
// one level, and returns at most limit page URLs. Sitemaps hosted off the
// seed's host are never fetched. Failures are skipped.
func (c *Crawler) loadSitemapPages(ctx context.Context, seed *url.URL, sitemaps []string, policy Policy, limit int) []string {
	type pendingSitemap struct {
		url    string
		nested bool
	}
	var (
		pages   []string
		fetched int
	)
	pending := make([]pendingSitemap, 0, len(sitemaps))
	for _, sm := range sitemaps {
		pending = append(pending, pendingSitemap{url: sm})
	}
	for len(pending) > 0 && fetched < maxSitemapFetches && len(pages) < limit {
		if ctx.Err() != nil {
			break
		}
		current := pending[0]
		pending = pending[1:]
		next := current.url
		if u, err := url.Parse(next); err != nil || !sameHost(u, seed) {
			c.logger.Debug("skipping off-host sitemap", zap.String("url", next))
			continue
		}
		fetched++

		if err := c.wait(ctx, next); err != nil {
			break
		}
		resp, err := c.fetcher.Fetch(ctx, FetchRequest{
			URL:             next,
			UserAgent:       policy.UserAgent,
			Timeout:         policy.Timeout,
			FollowRedirects: true,
		})
		if err != nil || resp.StatusCode != http.StatusOK {
			c.logger.Debug("sitemap unavailable", zap.String("url", next), zap.Error(err))
			continue
		}
		found, nested, err := parseSitemap(resp.Body)
		if err != nil {
			c.logger.Debug("sitemap unreadable", zap.String("url", next), zap.Error(err))
			continue
		}
		pages = append(pages, found...)
		if !current.nested {
			for _, sm := range nested {
				pending = append(pending, pendingSitemap{url: sm, nested: true})
			}
		}
	}
	if len(pages) > limit {
		pages = pages[:limit]
	}
	return pages
}
