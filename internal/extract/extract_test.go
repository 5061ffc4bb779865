package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/cdon-watcher/internal/models"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		text     string
		expected float64
		found    bool
	}{
		{"19.99€", 19.99, true},
		{"€29.50", 29.50, true},
		{"45,90 EUR", 45.90, true},
		{"EUR 12.99", 12.99, true},
		{"35€", 35.0, true},
		{"Price: 24.99€", 24.99, true},
		{"€ 19.99", 19.99, true},
		{"29,50 €", 29.50, true},
		{"  €  15.75  ", 15.75, true},
		{"19,99€", 19.99, true},
		{"0€", 0.0, true},
		{"999.99€", 999.99, true},
		{"No price here", 0, false},
		{"", 0, false},
		{"€", 0, false},
		{"EUR", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			price, ok := Price(tt.text)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.InDelta(t, tt.expected, price, 0.001)
			}
		})
	}
}

func TestPriceIdempotent(t *testing.T) {
	for _, text := range []string{"13,95 €", "Price: 24.99€", "45,90 EUR"} {
		price, ok := Price(text)
		require.True(t, ok)

		again, ok := Price(fmt.Sprintf("%.2f€", price))
		require.True(t, ok)
		assert.Equal(t, price, again)
	}
}

func TestFormatFromTitle(t *testing.T) {
	tests := []struct {
		title    string
		expected models.Format
	}{
		{"The Matrix 4K Ultra HD", models.Format4KBluRay},
		{"Avatar UHD", models.Format4KBluRay},
		{"Blade Runner Ultra HD", models.Format4KBluRay},
		{"Movie Title 4k", models.Format4KBluRay},
		{"The Matrix Blu-ray", models.FormatBluRay},
		{"Inception BluRay", models.FormatBluRay},
		{"Star Wars BD", models.FormatBluRay},
		{"Movie blu-ray edition", models.FormatBluRay},
		{"The Matrix DVD", models.FormatDVD},
		{"Regular Movie Title", models.FormatDVD},
		// 4K wins when both indicators are present.
		{"Movie 4K Blu-ray", models.Format4KBluRay},
		{"Title UHD Ultra HD Blu-ray", models.Format4KBluRay},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatFromTitle(tt.title))
		})
	}
}

func TestValidTitle(t *testing.T) {
	tests := []struct {
		title string
		valid bool
	}{
		{"The Matrix Blu-ray Edition", true},
		{"Inception 4K Ultra HD", true},
		{"Blade Runner 2049", true},
		{"Short", false},
		{"", false},
		{"Vihdoin arki alkaa", false},
		{"Movie Title vihdoin arki edition", false},
		{"Myyty tänään 50€", false},
		{"Osta heti 19.99€", false},
		{"50% ale", false},
		{"19.99", false},
		{"123.45", false},
		{"100 pieces of movie", true},
		{"Movie Title 100% Authentic", true},
		{"Movie Title €19.99", false},
		{"Movie Title OSTA", false},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidTitle(tt.title), "title: %q", tt.title)
		})
	}
}

func TestValidTitleRejectsPromoRegardlessOfLength(t *testing.T) {
	long := strings.Repeat("x", 30)
	assert.False(t, ValidTitle(long+" vihdoin arki "+long))
	assert.False(t, ValidTitle(long+" myyty tänään"))
	assert.False(t, ValidTitle(long+" 19€"))
	assert.False(t, ValidTitle(long+" -50%"))

	assert.True(t, ValidTitle("A Perfectly Ordinary Forty Char Movie It"))
}

func TestProductID(t *testing.T) {
	tests := []struct {
		url      string
		expected string
		found    bool
	}{
		{"https://cdon.fi/tuote/movie-title-abc123def456/", "abc123def456", true},
		{"https://cdon.fi/tuote/movie-title-abc123def456", "abc123def456", true},
		{"https://cdon.fi/tuote/test-product-deadbeef1234/", "deadbeef1234", true},
		// Fallback: trailing hex run without the slug form.
		{"https://cdon.fi/product/abc123def456/", "abc123def456", true},
		{"https://cdon.fi/item/deadbeef12345678/", "deadbeef12345678", true},
		{"https://cdon.fi/tuote/movie-title/", "", false},
		{"https://cdon.fi/", "", false},
		{"https://example.com/product/123/", "", false},
		{"invalid-url", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			id, ok := ProductID(tt.url)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestProductIDDeterministic(t *testing.T) {
	url := "https://cdon.fi/tuote/batman-1989-4k-ultra-hd-blu-ray-5cb24b79a41d59c4/"
	first, ok := ProductID(url)
	require.True(t, ok)
	second, ok := ProductID(url)
	require.True(t, ok)
	assert.Equal(t, first, second)

	other, ok := ProductID("https://cdon.fi/tuote/batman-1989-4k-ultra-hd-blu-ray-1111111111111111/")
	require.True(t, ok)
	assert.NotEqual(t, first, other)
}

func TestYear(t *testing.T) {
	tests := []struct {
		text     string
		expected int
		found    bool
	}{
		{"1989", 1989, true},
		{"Movie from 1999", 1999, true},
		{"Released in 2010 was great", 2010, true},
		{"1900", 1900, true},
		{"2030", 2030, true},
		{"1899", 0, false},
		{"2031", 0, false},
		{"1800", 0, false},
		{"123", 0, false},
		{"12345", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"The Matrix", 0, false},
		// First match in document order wins.
		{"Made in 1999 and remade in 2021", 1999, true},
		{"1985 was before 1990", 1985, true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			year, ok := Year(tt.text)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, year)
		})
	}
}

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

func TestProductionYearSibling(t *testing.T) {
	d := doc(t, `
		<div class="product-details">
			<div class="detail-row">
				<p class="label">Nauhoitusvuosi</p>
				<p class="value">1989</p>
			</div>
		</div>`)

	year, ok := ProductionYear(d)
	require.True(t, ok)
	assert.Equal(t, 1989, year)
}

func TestProductionYearSiblingCaseInsensitive(t *testing.T) {
	d := doc(t, `<div><p>nauhoitusvuosi</p><p>2024</p></div>`)

	year, ok := ProductionYear(d)
	require.True(t, ok)
	assert.Equal(t, 2024, year)
}

func TestProductionYearSiblingMissing(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"no label", `<div><p>Some other label</p><p>1989</p></div>`},
		{"no sibling", `<div><p>Nauhoitusvuosi</p></div>`},
		{"sibling not p and no year near label", `<div><p>Nauhoitusvuosi</p><span>kyllä</span></div>`},
		{"sibling has no year", `<div><p>Nauhoitusvuosi</p><p>Not a year</p></div>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ProductionYear(doc(t, tt.html))
			assert.False(t, ok)
		})
	}
}

func TestProductionYearContainerFallback(t *testing.T) {
	d := doc(t, `
		<div>
			<div class="info"><span>Director: Tim Burton</span></div>
			<div class="year-info">Nauhoitusvuosi: 2024</div>
		</div>`)

	year, ok := ProductionYear(d)
	require.True(t, ok)
	assert.Equal(t, 2024, year)
}

func TestProductionYearContainerFirstMatch(t *testing.T) {
	d := doc(t, `
		<div>
			<div>Some other info</div>
			<div>Nauhoitusvuosi 1982</div>
			<div>Format: Blu-ray</div>
		</div>`)

	year, ok := ProductionYear(d)
	require.True(t, ok)
	assert.Equal(t, 1982, year)
}

func TestProductionYearContainerRejectsInvalid(t *testing.T) {
	for _, html := range []string{
		`<div><div>Nauhoitusvuosi: Unknown</div></div>`,
		`<div><div>Nauhoitusvuosi: 1800</div></div>`,
		`<div><div>Director: Someone</div><div>Price: 19.99</div></div>`,
	} {
		_, ok := ProductionYear(doc(t, html))
		assert.False(t, ok, "html: %s", html)
	}
}

func TestProductionYearEmptyDocument(t *testing.T) {
	_, ok := ProductionYear(doc(t, ""))
	assert.False(t, ok)
}
