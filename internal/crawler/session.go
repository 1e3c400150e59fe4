package crawler

import (
	"net/url"

	"github.com/JakeFAU/seo-audit/internal/audit"
)

type frontierEntry struct {
	url   *url.URL
	depth int
}

// session is the mutable state of one crawl invocation: the FIFO frontier,
// the visited set and the pages recorded so far.
type session struct {
	seed     *url.URL
	policy   Policy
	robots   *robotsRules
	frontier []frontierEntry
	queued   map[string]struct{}
	visited  map[string]struct{}
	pages    map[string]audit.PageRecord
	seq      int
}

func newSession(seed *url.URL, policy Policy) *session {
	return &session{
		seed:    seed,
		policy:  policy,
		queued:  make(map[string]struct{}),
		visited: make(map[string]struct{}),
		pages:   make(map[string]audit.PageRecord),
	}
}

// enqueue appends u at depth unless an identical entry is already pending.
func (s *session) enqueue(u *url.URL, depth int) {
	key := normalize(u).String()
	if _, pending := s.queued[key]; pending {
		return
	}
	if _, seen := s.visited[key]; seen {
		return
	}
	s.queued[key] = struct{}{}
	s.frontier = append(s.frontier, frontierEntry{url: normalize(u), depth: depth})
}

func (s *session) next() (frontierEntry, bool) {
	if len(s.frontier) == 0 {
		return frontierEntry{}, false
	}
	entry := s.frontier[0]
	s.frontier = s.frontier[1:]
	delete(s.queued, entry.url.String())
	return entry, true
}

func (s *session) more() bool {
	return len(s.frontier) > 0 && len(s.visited) < s.policy.MaxPages
}

// shouldCrawl applies, in order: not visited, depth limit, same host,
// http(s) scheme, robots rules.
func (s *session) shouldCrawl(u *url.URL, depth int) bool {
	if _, seen := s.visited[normalize(u).String()]; seen {
		return false
	}
	if depth > s.policy.MaxDepth {
		return false
	}
	if !sameHost(u, s.seed) {
		return false
	}
	if !isHTTPScheme(u) {
		return false
	}
	if !s.policy.IgnoreRobotsTxt && !s.robots.allowed(u, s.policy.UserAgent) {
		return false
	}
	return true
}

func (s *session) markVisited(u *url.URL) {
	s.visited[normalize(u).String()] = struct{}{}
}

func (s *session) record(page audit.PageRecord) {
	s.pages[page.ID] = page
	s.seq++
}
