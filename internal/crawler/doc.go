// Package crawler discovers and fetches a bounded set of same-host pages
// starting from a seed URL and turns each response into an
// audit.PageRecord.
//
// A crawl is breadth-first over an explicit frontier owned by one session.
// Robots rules and sitemap entries are loaded once per crawl. Fetching is
// delegated to a Fetcher (colly over plain HTTP, optionally promoted to a
// headless browser), so the package itself performs no network I/O.
package crawler
