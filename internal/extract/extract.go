// Package extract holds the pure field extractors shared by the product
// parser: price text, media format, product ids, production years and the
// title filter. None of them touch the network.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/cdon-watcher/internal/models"
)

var (
	numberPattern       = regexp.MustCompile(`(\d+\.?\d*)`)
	yearPattern         = regexp.MustCompile(`\b(\d{4})\b`)
	productIDPattern    = regexp.MustCompile(`/tuote/[^/]+-([a-f0-9]+)/?$`)
	trailingHexPattern  = regexp.MustCompile(`([a-f0-9]{8,})/?$`)
	digitsOnlyStripper  = strings.NewReplacer(".", "", ",", "", " ", "")
	currencyStripper    = strings.NewReplacer("€", "", "EUR", "", " ", "", " ", "")
)

// promotionalTerms are banner phrases CDON renders in the same DOM positions
// as real titles.
var promotionalTerms = []string{"vihdoin arki", "myyty tänään", "€", "osta"}

// Price pulls a numeric price out of free text: currency markers and spaces
// are stripped, the Finnish decimal comma is normalized, and the first
// numeric token wins. ok is false when no number is present.
func Price(text string) (float64, bool) {
	cleaned := currencyStripper.Replace(text)
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	match := numberPattern.FindStringSubmatch(cleaned)
	if match == nil {
		return 0, false
	}

	price, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// FormatFromTitle classifies a title into a media format. 4K indicators win
// over Blu-ray indicators; DVD is the fallback, never a positive detection.
func FormatFromTitle(title string) models.Format {
	lower := strings.ToLower(title)

	for _, marker := range []string{"4k", "uhd", "ultra hd"} {
		if strings.Contains(lower, marker) {
			return models.Format4KBluRay
		}
	}
	for _, marker := range []string{"blu-ray", "bluray", "bd"} {
		if strings.Contains(lower, marker) {
			return models.FormatBluRay
		}
	}
	return models.FormatDVD
}

// ProductID extracts the opaque product identifier from a CDON product URL.
// Primary form: the hex token after the last hyphen of the /tuote/ slug.
// Fallback: any trailing run of 8+ hex characters.
func ProductID(url string) (string, bool) {
	if match := productIDPattern.FindStringSubmatch(url); match != nil {
		return match[1], true
	}
	if match := trailingHexPattern.FindStringSubmatch(strings.TrimRight(url, "/")); match != nil {
		return match[1], true
	}
	return "", false
}

// Year finds the first 4-digit run in text and accepts it only when it is a
// plausible production year.
func Year(text string) (int, bool) {
	match := yearPattern.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}

	year, err := strconv.Atoi(match[1])
	if err != nil || year < 1900 || year > 2030 {
		return 0, false
	}
	return year, true
}

// ValidTitle rejects candidates that are promotional banners, prices or bare
// numbers masquerading as titles.
func ValidTitle(title string) bool {
	if len(title) < 10 {
		return false
	}

	lower := strings.ToLower(title)
	for _, term := range promotionalTerms {
		if strings.Contains(lower, term) {
			return false
		}
	}

	if strings.HasSuffix(title, "%") {
		return false
	}

	// A "title" that is just a number is a price fragment.
	stripped := digitsOnlyStripper.Replace(title)
	if stripped != "" && isDigits(stripped) {
		return false
	}

	return true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

const yearLabel = "nauhoitusvuosi"

// ProductionYear resolves the recording year from a product page's detail
// section. Markup varies between pages, so two strategies run in order:
// a label paragraph whose sibling paragraph holds the year, then any div
// whose own text carries both the label and a year.
func ProductionYear(doc *goquery.Document) (int, bool) {
	if year, ok := yearFromSibling(doc); ok {
		return year, true
	}
	return yearFromContainer(doc)
}

func yearFromSibling(doc *goquery.Document) (int, bool) {
	year := 0
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		label := strings.ToLower(strings.TrimSpace(s.Text()))
		if !strings.Contains(label, yearLabel) {
			return true
		}

		sibling := s.Next()
		if !sibling.Is("p") {
			return true
		}

		if y, ok := Year(strings.TrimSpace(sibling.Text())); ok {
			year = y
			return false
		}
		return true
	})

	return year, year != 0
}

func yearFromContainer(doc *goquery.Document) (int, bool) {
	year := 0
	doc.Find("div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if !strings.Contains(strings.ToLower(text), yearLabel) {
			return true
		}
		// Only consider the innermost matching div: one with no matching
		// child, so the year sits next to the label rather than anywhere in
		// a large ancestor.
		if s.ChildrenFiltered("div").FilterFunction(func(_ int, c *goquery.Selection) bool {
			return strings.Contains(strings.ToLower(c.Text()), yearLabel)
		}).Length() > 0 {
			return true
		}

		idx := strings.Index(strings.ToLower(text), yearLabel)
		if y, ok := Year(text[idx:]); ok {
			year = y
			return false
		}
		return true
	})

	return year, year != 0
}
