package ingest

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/david/contract-map/internal/category"
	"github.com/david/contract-map/internal/geo"
	"github.com/david/contract-map/internal/models"
	"github.com/google/uuid"
)

const (
	NotAvailable        = "N/A"
	UnknownLocation     = "Unknown"
	UntitledOpportunity = "Untitled opportunity"
	DefaultListingURL   = "https://sam.gov"
	SourceSAM           = "SAM.gov"

	MaxDescriptionLen = 200
)

// Resolver turns a city and state into coordinates without failing.
type Resolver interface {
	Resolve(ctx context.Context, city, state string) geo.Coordinates
}

// Classifier assigns a category from NAICS and PSC codes.
type Classifier interface {
	ClassifyOpportunity(naics, classification string) category.Category
}

// Place is an optional city and state; empty strings mean unknown.
type Place struct {
	City  string
	State string
}

// Label renders "City, ST", "ST" or "".
func (p Place) Label() string {
	switch {
	case p.City != "" && p.State != "":
		return p.City + ", " + p.State
	case p.State != "":
		return p.State
	}
	return ""
}

// Contract is the normalized form of one opportunity. Optional values stay
// typed here; sentinel strings are produced only by Record.
type Contract struct {
	ID           string
	Title        string
	Value        Money
	DueDate      Date
	PostedDate   Date
	Place        Place
	Coordinates  geo.Coordinates
	Agency       string
	Category     category.Category
	ContactEmail string
	Description  string
	Source       string
	URL          string
}

// Record serializes c, substituting sentinels for absent values.
func (c Contract) Record() models.Contract {
	return models.Contract{
		ID:           c.ID,
		Title:        orSentinel(c.Title, UntitledOpportunity),
		Value:        formatted(c.Value.Format()),
		DueDate:      formatted(c.DueDate.Format()),
		PostedDate:   formatted(c.PostedDate.Format()),
		Location:     orSentinel(c.Place.Label(), UnknownLocation),
		Lat:          c.Coordinates.Lat,
		Lng:          c.Coordinates.Lng,
		Agency:       orSentinel(c.Agency, NotAvailable),
		Category:     string(c.Category),
		ContactEmail: orSentinel(c.ContactEmail, NotAvailable),
		Description:  c.Description,
		Source:       orSentinel(c.Source, SourceSAM),
		URL:          orSentinel(c.URL, DefaultListingURL),
	}
}

func formatted(s string, ok bool) string {
	if !ok {
		return NotAvailable
	}
	return s
}

func orSentinel(s, sentinel string) string {
	if strings.TrimSpace(s) == "" {
		return sentinel
	}
	return s
}

type Normalizer struct {
	Geocoder   Resolver
	Classifier Classifier
	// NewSuffix generates the random part of a synthesized id.
	NewSuffix func() string
}

func NewNormalizer(geocoder Resolver, classifier Classifier) *Normalizer {
	return &Normalizer{
		Geocoder:   geocoder,
		Classifier: classifier,
		NewSuffix:  randomSuffix,
	}
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Normalize never fails; missing or malformed fields become absent values.
func (n *Normalizer) Normalize(ctx context.Context, raw RawOpportunity) Contract {
	title := cleanText(HTMLToText(raw.Title))
	if title == "" {
		title = UntitledOpportunity
	}

	place := Place{City: raw.City(), State: raw.StateCode()}

	c := Contract{
		ID:           n.contractID(raw),
		Title:        title,
		Value:        parseMoney(raw.AwardAmount()),
		DueDate:      parseDate(raw.ResponseDeadLine),
		PostedDate:   parseDate(raw.PostedDate),
		Place:        place,
		Agency:       joinNonEmpty(" - ", raw.AgencyParts()...),
		Category:     category.Fallback,
		ContactEmail: raw.ContactEmail(),
		Description:  describe(raw.Description, title),
		Source:       SourceSAM,
		URL:          firstNonEmpty(raw.UILink, raw.AdditionalInfoLink, DefaultListingURL),
	}

	if n.Classifier != nil {
		c.Category = n.Classifier.ClassifyOpportunity(raw.NaicsCode.String(), raw.ClassificationCode.String())
	}
	if n.Geocoder != nil {
		c.Coordinates = n.Geocoder.Resolve(ctx, place.City, place.State)
	} else {
		c.Coordinates = geo.FallbackCenter(place.State)
	}
	return c
}

func (n *Normalizer) contractID(raw RawOpportunity) string {
	if id := strings.TrimSpace(raw.NoticeID); id != "" {
		return id
	}
	if sol := strings.TrimSpace(raw.SolicitationNumber); sol != "" {
		return "sam_" + sol
	}
	suffix := randomSuffix
	if n.NewSuffix != nil {
		suffix = n.NewSuffix
	}
	return "sam_" + suffix()
}

// describe converts the upstream description to plain text. SAM.gov often
// returns a link to its description endpoint instead of text; that and an
// empty description fall back to the title.
func describe(raw, title string) string {
	text := ""
	if !looksLikeURL(raw) {
		text = HTMLToText(raw)
	}
	if text == "" {
		text = title
	}
	return TruncateText(text, MaxDescriptionLen)
}

// TruncateText cuts text to at most maxLen characters, ending in "..." when cut.
func TruncateText(text string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	if maxLen > 3 {
		return strings.TrimRight(string(runes[:maxLen-3]), " ") + "..."
	}
	return string(runes[:maxLen])
}

// HTMLToText converts HTML to plain text, collapsing whitespace.
func HTMLToText(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return cleanText(html)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return cleanText(html)
	}
	doc.Find("script, style").Remove()
	doc.Find("br, p, div, li").Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml(" ")
	})
	return cleanText(doc.Text())
}
