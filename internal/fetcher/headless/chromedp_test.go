package headless

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/seo-audit/internal/crawler"
)

func TestNewChromedpLimiterValidation(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{MaxParallel: -1})
	require.Error(t, err)

	fetcher, err := NewChromedp(Config{MaxParallel: 2})
	require.NoError(t, err)
	defer fetcher.Close()
	require.Equal(t, 2, cap(fetcher.limiter))
	require.Equal(t, defaultNavigationTimeout, fetcher.cfg.NavigationTimeout)
}

func TestFetcherNavTimeout(t *testing.T) {
	t.Parallel()

	fetcher := &Fetcher{}
	require.Equal(t, defaultNavigationTimeout, fetcher.navTimeout(crawler.FetchRequest{}))

	fetcher.cfg.NavigationTimeout = time.Second
	require.Equal(t, time.Second, fetcher.navTimeout(crawler.FetchRequest{}))
	require.Equal(t, 3*time.Second, fetcher.navTimeout(crawler.FetchRequest{Timeout: 3 * time.Second}))
}

func TestFetcherUserAgentPrefersRequest(t *testing.T) {
	t.Parallel()

	fetcher := &Fetcher{cfg: Config{UserAgent: "config-agent"}}
	require.Equal(t, "config-agent", fetcher.userAgent(crawler.FetchRequest{}))
	require.Equal(t, "job-agent", fetcher.userAgent(crawler.FetchRequest{UserAgent: "job-agent"}))
}

func TestAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	fetcher := &Fetcher{limiter: make(chan struct{}, 1)}
	require.NoError(t, fetcher.acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, fetcher.acquire(ctx), context.Canceled)

	fetcher.release()
	require.NoError(t, fetcher.acquire(context.Background()))
}

func TestNetworkHeaders(t *testing.T) {
	t.Parallel()

	netHeaders := toNetworkHeaders(http.Header{"X-Test": {"a", "b"}, "X-One": {"1"}, "X-None": {}})
	require.Equal(t, []string{"a", "b"}, netHeaders["X-Test"])
	require.Equal(t, "1", netHeaders["X-One"])
	require.NotContains(t, netHeaders, "X-None")
}

func TestResponseMetaKeepsFirstDocument(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{Status: 500, URL: "https://example.com/app.js"},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  203,
			URL:     "https://example.com/rendered",
			Headers: network.Headers{"Content-Type": "text/html", "X-Multi": []interface{}{"a", "b"}},
		},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 200, URL: "https://ads.example.net/frame"},
	})

	status, headers, url := meta.snapshotWithFallbacks("https://req", "")
	require.Equal(t, 203, status)
	require.Equal(t, "https://example.com/rendered", url)
	require.Equal(t, "text/html", headers.Get("Content-Type"))
	require.Equal(t, []string{"a", "b"}, headers.Values("X-Multi"))
}

func TestResponseMetaFallbacks(t *testing.T) {
	t.Parallel()

	status, headers, url := newResponseMeta().snapshotWithFallbacks("https://req", "https://final")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://final", url)
	require.NotNil(t, headers)

	_, _, url = newResponseMeta().snapshotWithFallbacks("https://req", "")
	require.Equal(t, "https://req", url)
}

func TestMillisClampsUnfiredEvents(t *testing.T) {
	t.Parallel()

	require.Zero(t, millis(-1))
	require.Zero(t, millis(0))
	require.Equal(t, 1500*time.Millisecond, millis(1500))
	require.Equal(t, 2500*time.Microsecond, millis(2.5))
}
