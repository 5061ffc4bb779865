package parser

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/cdon-watcher/internal/models"
)

const batmanHTML = `
<html>
	<head><title>Batman (1989) (4K Ultra HD + Blu-ray) | CDON</title></head>
	<body>
		<h1>Batman (1989) (4K Ultra HD + Blu-ray)</h1>
		<h2>13.95 €</h2>
		<div class="product-details">
			<div class="detail-row">
				<p class="label">Nauhoitusvuosi</p>
				<p class="value">1989</p>
			</div>
			<div class="detail-row">
				<p class="label">Format</p>
				<p class="value">4K Ultra HD + Blu-ray</p>
			</div>
		</div>
		<div class="product-image"><img src="/image.jpg" alt="Batman poster" /></div>
	</body>
</html>`

func newTestParser(t *testing.T, handler http.Handler) (*Parser, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := New(Config{BaseURL: srv.URL}, slog.Default())
	return p, srv
}

func serveHTML(html string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, html)
	})
}

func TestParseProductPage(t *testing.T) {
	p, srv := newTestParser(t, serveHTML(batmanHTML))
	url := srv.URL + "/tuote/batman-1989-4k-ultra-hd-blu-ray-5cb24b79a41d59c4/"

	movie, err := p.Parse(url)
	require.NoError(t, err)

	assert.Equal(t, "Batman (1989) (4K Ultra HD + Blu-ray)", movie.Title)
	assert.Equal(t, 13.95, movie.Price)
	assert.Equal(t, models.Format4KBluRay, movie.Format)
	assert.Equal(t, 1989, movie.ProductionYear)
	assert.Equal(t, url, movie.URL)
	assert.Equal(t, "5cb24b79a41d59c4", movie.ProductID)
	assert.Equal(t, srv.URL+"/image.jpg", movie.ImageURL)
	assert.Equal(t, "In Stock", movie.Availability)
	assert.Zero(t, movie.OriginalPrice)
}

func TestParseNoProductionYear(t *testing.T) {
	p, srv := newTestParser(t, serveHTML(`
		<html>
			<head><title>Some Movie (Blu-ray) | CDON</title></head>
			<body>
				<h1>Some Movie (Blu-ray)</h1>
				<h2>19.99 €</h2>
				<div class="product-details">
					<div class="detail-row">
						<p class="label">Director</p>
						<p class="value">Unknown</p>
					</div>
				</div>
			</body>
		</html>`))

	movie, err := p.Parse(srv.URL + "/tuote/some-movie-blu-ray-abc12345/")
	require.NoError(t, err)

	assert.Equal(t, "Some Movie (Blu-ray)", movie.Title)
	assert.Equal(t, 19.99, movie.Price)
	assert.Zero(t, movie.ProductionYear)
}

func TestParseRejectsPageWithoutPrice(t *testing.T) {
	// The title resolves fine, but no element anywhere carries a currency
	// marker: the whole record must be rejected.
	p, srv := newTestParser(t, serveHTML(`
		<html><body>
			<h1>A Quiet Place: Day One (Blu-ray)</h1>
			<div>Paljon muuta sisältöä ilman hintaa</div>
		</body></html>`))

	_, err := p.Parse(srv.URL + "/tuote/a-quiet-place-day-one-blu-ray-c36f6b36e4475abc/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no price")
}

func TestParseRejectsPageWithoutTitle(t *testing.T) {
	p, srv := newTestParser(t, serveHTML(`
		<html><body>
			<h1>Vihdoin arki alkaa</h1>
			<h2>13.95 €</h2>
		</body></html>`))

	_, err := p.Parse(srv.URL + "/tuote/promo-page-deadbeef12/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no title")
}

func TestParseRejectsLowPricesAndShipping(t *testing.T) {
	// 3.90€ shipping note and a 4.99€ fee are below the floor or flagged as
	// delivery; the real price sits in a labeled span.
	p, srv := newTestParser(t, serveHTML(`
		<html><body>
			<h1>The Penguin (Blu-ray) Season One</h1>
			<div>Toimitus 3.90 €</div>
			<div>Shipping from 4.99 €</div>
			<span class="product-price">24,95 €</span>
		</body></html>`))

	movie, err := p.Parse(srv.URL + "/tuote/penguin-the-blu-ray-ee2194c5ba0057c7/")
	require.NoError(t, err)
	assert.Equal(t, 24.95, movie.Price)
}

func TestParsePriceFromTextNodeFallback(t *testing.T) {
	p, srv := newTestParser(t, serveHTML(`
		<html><body>
			<h1>Indiana Jones 4-Movie Collection (Blu-ray)</h1>
			<section><div><b>29,95 €</b></div></section>
		</body></html>`))

	movie, err := p.Parse(srv.URL + "/tuote/indiana-jones-4-movie-collection-blu-ray-e5a58c8cee5e590e/")
	require.NoError(t, err)
	assert.Equal(t, 29.95, movie.Price)
}

func TestParseOriginalPriceAndAvailability(t *testing.T) {
	p, srv := newTestParser(t, serveHTML(`
		<html><body>
			<h1>Dune Part Two (4K Ultra HD)</h1>
			<h2>19,95 €</h2>
			<del>34,95 €</del>
			<div class="stock-status">Varastossa</div>
		</body></html>`))

	movie, err := p.Parse(srv.URL + "/tuote/dune-part-two-4k-abc123def456/")
	require.NoError(t, err)
	assert.Equal(t, 19.95, movie.Price)
	assert.Equal(t, 34.95, movie.OriginalPrice)
	assert.Equal(t, "Varastossa", movie.Availability)
}

func TestParseTitleFromPageTitleFallback(t *testing.T) {
	p, srv := newTestParser(t, serveHTML(`
		<html>
			<head><title>Heat - Director's Definitive Edition (Blu-ray) | CDON</title></head>
			<body><h2>14,95 €</h2></body>
		</html>`))

	movie, err := p.Parse(srv.URL + "/tuote/heat-directors-definitive-edition-blu-ray-ab12cd34ef56/")
	require.NoError(t, err)
	assert.Equal(t, "Heat - Director's Definitive Edition (Blu-ray)", movie.Title)
}

func TestParseRejectsNonProductURLs(t *testing.T) {
	p, _ := newTestParser(t, serveHTML(batmanHTML))

	for _, url := range []string{
		"",
		"not-a-url",
		"https://",
		"ftp://cdon.fi/tuote/something/",
		"https://example.com/some-product/",
	} {
		_, err := p.Parse(url)
		assert.Error(t, err, "url: %q", url)
	}
}

func TestParseHTTPErrorIsPerURLFailure(t *testing.T) {
	p, srv := newTestParser(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))

	_, err := p.Parse(srv.URL + "/tuote/removed-movie-abc123def456/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
