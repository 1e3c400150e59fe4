package crawler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/seo-audit/internal/audit"
)

const samplePage = `<!doctype html>
<html>
<head>
  <title>
    Shoes   for Sale
  </title>
  <meta name="Description" content=" Cheap shoes ">
  <meta name="robots" content="noindex">
  <meta name="viewport" content="width=device-width">
  <meta property="og:title" content="Shoes">
  <meta name="twitter:card" content="summary">
  <link rel="canonical" href="/shoes">
  <link rel="amphtml" href="https://example.com/amp/shoes">
  <link rel="alternate" hreflang="de" href="/de/shoes">
  <script type="application/ld+json">{ "@type": "Product",
    "name": "Shoe" }</script>
  <script type="application/ld+json">{broken</script>
</head>
<body>
  <h1 id="top">Shoes</h1>
  <h2>Running</h2>
  <h2>Hiking</h2>
  <h4>Sizes</h4>
  <a href="/boots" rel="nofollow">Boots</a>
  <a href="https://other.example.org/x" target="_blank">Partner</a>
  <a href="mailto:sales@example.com">Mail</a>
  <a href="javascript:void(0)">Nothing</a>
  <a href="#reviews">Reviews</a>
  <img src="/img/a.png" alt=" A shoe " width="100" height="50px" loading="Lazy">
  <img src="b.png" width="100%">
</body>
</html>`

func TestExtractPage(t *testing.T) {
	t.Parallel()

	base := mustURL(t, "https://example.com/shop/index.html")
	var rec audit.PageRecord
	require.NoError(t, extractPage(&rec, []byte(samplePage), base))

	require.Equal(t, "Shoes for Sale", rec.Title)
	require.Equal(t, "Cheap shoes", rec.Description)
	require.Equal(t, "Shoes", rec.H1)
	require.Len(t, rec.Headings.Level(1), 1)
	require.Equal(t, "top", rec.Headings.Level(1)[0].ID)
	require.Len(t, rec.Headings.Level(2), 2)
	require.Empty(t, rec.Headings.Level(3))
	require.Len(t, rec.Headings.Level(4), 1)
	require.Equal(t, 4, rec.Headings.Count())

	require.Len(t, rec.Links, 3)
	require.Equal(t, audit.Link{URL: "https://example.com/boots", Text: "Boots", Rel: "nofollow"}, rec.Links[0])
	require.True(t, rec.Links[1].External)
	require.Equal(t, "_blank", rec.Links[1].Target)
	require.Equal(t, "https://example.com/shop/index.html#reviews", rec.Links[2].URL)
	require.False(t, rec.Links[2].External)

	require.Len(t, rec.Images, 2)
	require.Equal(t, audit.Image{
		Src: "https://example.com/img/a.png", Alt: "A shoe", Width: 100, Height: 50, Loading: "lazy",
	}, rec.Images[0])
	require.Equal(t, "https://example.com/shop/b.png", rec.Images[1].Src)
	require.Zero(t, rec.Images[1].Width)

	seo := rec.SEO
	require.Equal(t, "https://example.com/shoes", seo.Canonical)
	require.Equal(t, "noindex", seo.Robots)
	require.Equal(t, "width=device-width", seo.Viewport)
	require.Equal(t, map[string]string{"og:title": "Shoes"}, seo.OGTags)
	require.Equal(t, map[string]string{"twitter:card": "summary"}, seo.TwitterTags)
	require.Equal(t, "https://example.com/amp/shoes", seo.AMPLink)
	require.Equal(t, []audit.Hreflang{{Href: "https://example.com/de/shoes", Hreflang: "de"}}, seo.Hreflang)

	require.Len(t, seo.StructuredData, 2)
	require.JSONEq(t, `{"@type":"Product","name":"Shoe"}`, string(seo.StructuredData[0]))
	var invalid map[string]string
	require.NoError(t, json.Unmarshal(seo.StructuredData[1], &invalid))
	require.Equal(t, "Invalid JSON", invalid["error"])
}

func TestExtractPageEmptyDocument(t *testing.T) {
	t.Parallel()

	var rec audit.PageRecord
	require.NoError(t, extractPage(&rec, nil, mustURL(t, "https://example.com/")))
	require.Empty(t, rec.Title)
	require.Empty(t, rec.Description)
	require.Empty(t, rec.H1)
	require.Zero(t, rec.Headings.Count())
	require.Empty(t, rec.Links)
	require.NotNil(t, rec.SEO.OGTags)
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"HTTPS://Example.COM:443":          "https://example.com/",
		"http://example.com:80/a#frag":     "http://example.com/a",
		"http://example.com:8080/a":        "http://example.com:8080/a",
		"https://example.com/p?b=2&a=1":    "https://example.com/p?a=1&b=2",
		"https://example.com/p/?utm=x#top": "https://example.com/p/?utm=x",
	}
	for in, want := range cases {
		got, err := NormalizeURL(in)
		require.NoError(t, err)
		require.Equal(t, want, got, in)
	}

	_, err := NormalizeURL("http://%zz")
	require.Error(t, err)
}
