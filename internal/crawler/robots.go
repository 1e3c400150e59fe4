package crawler

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const maxRobotsBytes = 1 << 20

type robotsRule struct {
	allow  bool
	prefix string
}

// robotsRules holds robots.txt directives grouped by lowercased user-agent.
// Matching is plain prefix matching on the path and query.
type robotsRules struct {
	groups   map[string][]robotsRule
	sitemaps []string
}

// parseRobots reads a robots.txt body. Consecutive User-agent lines share
// the rules that follow them.
func parseRobots(body []byte) *robotsRules {
	rules := &robotsRules{groups: make(map[string][]robotsRule)}
	scanner := bufio.NewScanner(bytes.NewReader(body))
	var (
		agents       []string
		sawDirective bool
	)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		field = strings.ToLower(strings.TrimSpace(field))
		value = strings.TrimSpace(value)

		switch field {
		case "user-agent":
			if sawDirective {
				agents = nil
				sawDirective = false
			}
			agent := strings.ToLower(value)
			agents = append(agents, agent)
			if _, exists := rules.groups[agent]; !exists {
				rules.groups[agent] = nil
			}
		case "allow", "disallow":
			sawDirective = true
			if value == "" {
				// "Disallow:" with no path allows everything.
				continue
			}
			rule := robotsRule{allow: field == "allow", prefix: normalizeRobotsPath(value)}
			for _, agent := range agents {
				rules.groups[agent] = append(rules.groups[agent], rule)
			}
		case "sitemap":
			if value != "" {
				rules.sitemaps = append(rules.sitemaps, value)
			}
		default:
			if len(agents) > 0 {
				sawDirective = true
			}
		}
	}
	return rules
}

// allowed checks the crawler's own group first and falls back to "*" only
// when no group names the crawler.
func (r *robotsRules) allowed(target *url.URL, userAgent string) bool {
	if r == nil {
		return true
	}
	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}
	if rules, ok := r.groupFor(userAgent); ok {
		return evaluateRules(rules, path)
	}
	if rules, ok := r.groups["*"]; ok {
		return evaluateRules(rules, path)
	}
	return true
}

func (r *robotsRules) groupFor(userAgent string) ([]robotsRule, bool) {
	ua := strings.ToLower(userAgent)
	if rules, ok := r.groups[productToken(ua)]; ok {
		return rules, true
	}
	agents := make([]string, 0, len(r.groups))
	for agent := range r.groups {
		if agent != "*" && agent != "" {
			agents = append(agents, agent)
		}
	}
	sort.Strings(agents)
	for _, agent := range agents {
		if strings.Contains(ua, agent) {
			return r.groups[agent], true
		}
	}
	return nil, false
}

// evaluateRules returns false only when a disallow prefix matches and no
// allow prefix does.
func evaluateRules(rules []robotsRule, path string) bool {
	disallowed := false
	for _, rule := range rules {
		if !rule.allow && strings.HasPrefix(path, rule.prefix) {
			disallowed = true
			break
		}
	}
	if !disallowed {
		return true
	}
	for _, rule := range rules {
		if rule.allow && strings.HasPrefix(path, rule.prefix) {
			return true
		}
	}
	return false
}

func normalizeRobotsPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/" + p
	}
	return p
}

func productToken(ua string) string {
	token, _, _ := strings.Cut(ua, "/")
	fields := strings.Fields(token)
	if len(fields) == 0 {
		return ua
	}
	return fields[0]
}

// loadRobots fetches robots.txt for the seed host. Any failure yields nil
// rules, which allow everything.
func (c *Crawler) loadRobots(ctx context.Context, seed *url.URL, policy Policy) *robotsRules {
	robotsURL := url.URL{Scheme: seed.Scheme, Host: seed.Host, Path: "/robots.txt"}
	if err := c.wait(ctx, robotsURL.String()); err != nil {
		c.logger.Debug("robots fetch not admitted; crawling unrestricted",
			zap.String("url", robotsURL.String()), zap.Error(err))
		return nil
	}
	resp, err := c.fetcher.Fetch(ctx, FetchRequest{
		URL:             robotsURL.String(),
		UserAgent:       policy.UserAgent,
		Timeout:         policy.Timeout,
		FollowRedirects: true,
	})
	if err != nil {
		c.logger.Debug("robots fetch failed; crawling unrestricted",
			zap.String("url", robotsURL.String()), zap.Error(err))
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("robots unavailable; crawling unrestricted",
			zap.String("url", robotsURL.String()), zap.Int("status", resp.StatusCode))
		return nil
	}
	body := resp.Body
	if len(body) > maxRobotsBytes {
		body = body[:maxRobotsBytes]
	}
	rules := parseRobots(body)
	c.logger.Debug("robots loaded",
		zap.String("url", robotsURL.String()),
		zap.Int("groups", len(rules.groups)),
		zap.Int("sitemaps", len(rules.sitemaps)))
	return rules
}
