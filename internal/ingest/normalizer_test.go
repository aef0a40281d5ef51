package ingest

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/david/contract-map/internal/category"
	"github.com/david/contract-map/internal/geo"
	"github.com/david/contract-map/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	calls []string
	at    map[string]geo.Coordinates
}

func (s *stubResolver) Resolve(_ context.Context, city, state string) geo.Coordinates {
	s.calls = append(s.calls, city+"|"+state)
	if c, ok := s.at[city+"|"+state]; ok {
		return c
	}
	return geo.FallbackCenter(state)
}

func decodeRaw(t *testing.T, js string) RawOpportunity {
	t.Helper()
	var raw RawOpportunity
	require.NoError(t, json.Unmarshal([]byte(js), &raw))
	return raw
}

func TestNormalizeBridgeRepair(t *testing.T) {
	raw := decodeRaw(t, `{
		"noticeId": "t1",
		"title": "Bridge Repair",
		"award": {"amount": "1,500,000"},
		"placeOfPerformance": {"city": {"name": "Houston"}, "state": {"code": "TX"}},
		"naicsCode": "237310"
	}`)

	g := geo.NewGeocoder(geo.NewCache(nil), nil, 0)
	n := NewNormalizer(g, category.Default())

	got := n.Normalize(context.Background(), raw).Record()

	want := models.Contract{
		ID:           "t1",
		Title:        "Bridge Repair",
		Value:        "$1,500,000",
		DueDate:      NotAvailable,
		PostedDate:   NotAvailable,
		Location:     "Houston, TX",
		Lat:          29.7604,
		Lng:          -95.3698,
		Agency:       NotAvailable,
		Category:     "Transportation",
		ContactEmail: NotAvailable,
		Description:  "Bridge Repair",
		Source:       "SAM.gov",
		URL:          "https://sam.gov",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeEmptyRecordUsesSentinels(t *testing.T) {
	n := NewNormalizer(&stubResolver{}, category.Default())
	n.NewSuffix = func() string { return "abc123" }

	got := n.Normalize(context.Background(), RawOpportunity{}).Record()

	want := models.Contract{
		ID:           "sam_abc123",
		Title:        UntitledOpportunity,
		Value:        NotAvailable,
		DueDate:      NotAvailable,
		PostedDate:   NotAvailable,
		Location:     UnknownLocation,
		Lat:          geo.NationalCenter.Lat,
		Lng:          geo.NationalCenter.Lng,
		Agency:       NotAvailable,
		Category:     "Federal",
		ContactEmail: NotAvailable,
		Description:  UntitledOpportunity,
		Source:       SourceSAM,
		URL:          DefaultListingURL,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeFields(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, c models.Contract)
	}{
		{
			name: "solicitation number id",
			raw:  `{"solicitationNumber": "W912-24-R-0001"}`,
			check: func(t *testing.T, c models.Contract) {
				assert.Equal(t, "sam_W912-24-R-0001", c.ID)
			},
		},
		{
			name: "numeric award amount",
			raw:  `{"award": {"amount": 2500000.75}}`,
			check: func(t *testing.T, c models.Contract) {
				assert.Equal(t, "$2,500,001", c.Value)
			},
		},
		{
			name: "unparsable award amount",
			raw:  `{"award": {"amount": "TBD"}}`,
			check: func(t *testing.T, c models.Contract) {
				assert.Equal(t, NotAvailable, c.Value)
			},
		},
		{
			name: "malformed award amount",
			raw:  `{"award": {"amount": "1.2.3"}}`,
			check: func(t *testing.T, c models.Contract) {
				assert.Equal(t, NotAvailable, c.Value)
			},
		},
		{
			name: "award object of wrong type",
			raw:  `{"award": {"amount": {"value": 5}}}`,
			check: func(t *testing.T, c models.Contract) {
				assert.Equal(t, NotAvailable, c.Value)
			},
		},
		{
			name: "state only location",
			raw:  `{"placeOfPerformance": {"state": {"code": "ca"}}}`,
			check: func(t *testing.T, c models.Contract) {
				assert.Equal(t, "CA", c.Location)
				assert.Equal(t, geo.FallbackCenter("CA").Lat, c.Lat)
			},
		},
		{
			name: "agency skips empty segments",
			raw:  `{"department": "DEPT OF DEFENSE", "subtier": "", "office": "W6QM MICC"}`,
			check: func(t *testing.T, c models.Contract) {
				assert.Equal(t, "DEPT OF DEFENSE - W6QM MICC", c.Agency)
			},
		},
		{
			name: "agency accepts subTier spelling",
			raw:  `{"department": "TRANSPORTATION, DEPARTMENT OF", "subTier": "FEDERAL HIGHWAY ADMINISTRATION", "office": " "}`,
			check: func(t *testing.T, c models.Contract) {
				assert.Equal(t, "TRANSPORTATION, DEPARTMENT OF - FEDERAL HIGHWAY ADMINISTRATION", c.Agency)
			},
		},
		{
			name: "agency markup and entities",
			raw:  `{"department": "ARMY CORPS OF ENGINEERS &amp; CIVIL WORKS", "office": "<b>SWF</b>"}`,
			check: func(t *testing.T, c models.Contract) {
				assert.Equal(t, "ARMY CORPS OF ENGINEERS & CIVIL WORKS - SWF", c.Agency)
			},
		},
		{
			name: "first non-empty contact email",
			raw:  `{"pointOfContact": [{"fullName": "A", "email": null}, {"email": "b@example.gov"}]}`,
			check: func(t *testing.T, c models.Contract) {
				assert.Equal(t, "b@example.gov", c.ContactEmail)
			},
		},
		{
			name: "dates",
			raw:  `{"postedDate": "2024-01-05", "responseDeadLine": "2024-02-15T17:00:00-05:00"}`,
			check: func(t *testing.T, c models.Contract) {
				assert.Equal(t, "2024-01-05", c.PostedDate)
				assert.Equal(t, "2024-02-15T17:00:00-05:00", c.DueDate)
			},
		},
		{
			name: "partial date is rejected",
			raw:  `{"postedDate": "2024-01", "responseDeadLine": "next Tuesday"}`,
			check: func(t *testing.T, c models.Contract) {
				assert.Equal(t, NotAvailable, c.PostedDate)
				assert.Equal(t, NotAvailable, c.DueDate)
			},
		},
		{
			name: "url fallback chain",
			raw:  `{"additionalInfoLink": "https://example.gov/info"}`,
			check: func(t *testing.T, c models.Contract) {
				assert.Equal(t, "https://example.gov/info", c.URL)
			},
		},
		{
			name: "ui link preferred",
			raw:  `{"uiLink": "https://sam.gov/opp/abc/view", "additionalInfoLink": "https://example.gov/info"}`,
			check: func(t *testing.T, c models.Contract) {
				assert.Equal(t, "https://sam.gov/opp/abc/view", c.URL)
			},
		},
		{
			name: "html description",
			raw:  `{"title": "Dredging", "description": "<p>Maintenance&nbsp;dredging</p><ul><li>Channel A</li><li>Channel B</li></ul>"}`,
			check: func(t *testing.T, c models.Contract) {
				assert.Equal(t, "Maintenance dredging Channel A Channel B", c.Description)
			},
		},
		{
			name: "description link falls back to title",
			raw:  `{"title": "Runway Lighting", "description": "https://api.sam.gov/prod/opportunities/v1/noticedesc?noticeid=abc"}`,
			check: func(t *testing.T, c models.Contract) {
				assert.Equal(t, "Runway Lighting", c.Description)
			},
		},
		{
			name: "psc fallback category",
			raw:  `{"classificationCode": "Y1LB"}`,
			check: func(t *testing.T, c models.Contract) {
				assert.Equal(t, "Transportation", c.Category)
			},
		},
		{
			name: "numeric naics code",
			raw:  `{"naicsCode": 237110}`,
			check: func(t *testing.T, c models.Contract) {
				assert.Equal(t, "Water", c.Category)
			},
		},
	}

	n := NewNormalizer(&stubResolver{}, category.Default())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, n.Normalize(context.Background(), decodeRaw(t, tt.raw)).Record())
		})
	}
}

func TestNormalizeTruncatesLongDescriptions(t *testing.T) {
	raw := RawOpportunity{Title: "Levee", Description: strings.Repeat("é", 500)}
	c := NewNormalizer(&stubResolver{}, nil).Normalize(context.Background(), raw)

	assert.Equal(t, MaxDescriptionLen, utf8.RuneCountInString(c.Description))
	assert.True(t, strings.HasSuffix(c.Description, "..."))
	assert.True(t, utf8.ValidString(c.Description))
}

func TestNormalizeResolvesStateOnlyPlaces(t *testing.T) {
	resolver := &stubResolver{}
	raw := decodeRaw(t, `{"placeOfPerformance": {"state": {"code": "TX"}}}`)

	c := NewNormalizer(resolver, nil).Normalize(context.Background(), raw)

	assert.Equal(t, []string{"|TX"}, resolver.calls)
	assert.Equal(t, geo.FallbackCenter("TX"), c.Coordinates)
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "abcdefg...", TruncateText("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", TruncateText("abcdef", 2))
	assert.Equal(t, "", TruncateText("abc", 0))
}

func TestMoneyFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1,500,000", "$1,500,000"},
		{"$1,500,000.49", "$1,500,000"},
		{"999.5", "$1,000"},
		{"0", "$0"},
		{"USD 42", "$42"},
		{"", NotAvailable},
		{"n/a", NotAvailable},
		{"..", NotAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, formatted(parseMoney(tt.in).Format()))
		})
	}
}

func TestMissingAwardIsAlwaysNotAvailable(t *testing.T) {
	properties := gopter.NewProperties(nil)
	n := NewNormalizer(&stubResolver{}, category.Default())

	properties.Property("records without an award never get a value", prop.ForAll(
		func(title, naics, state string) bool {
			raw := RawOpportunity{
				NoticeID:           "p",
				Title:              title,
				NaicsCode:          FlexString(naics),
				PlaceOfPerformance: &RawPlace{State: &RawNamedCode{Code: state}},
			}
			return n.Normalize(context.Background(), raw).Record().Value == NotAvailable
		},
		gen.AnyString(),
		gen.NumString(),
		gen.OneConstOf("TX", "", "zz"),
	))

	properties.Property("any award text yields N/A or a whole dollar string", prop.ForAll(
		func(amount string) bool {
			v := formatted(parseMoney(amount).Format())
			if v == NotAvailable {
				return true
			}
			return strings.HasPrefix(v, "$") && !strings.Contains(v, ".") && !strings.Contains(v, "NaN")
		},
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestFlexString(t *testing.T) {
	var v struct {
		A FlexString `json:"a"`
		B FlexString `json:"b"`
		C FlexString `json:"c"`
		D FlexString `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "x", "b": 12.50, "c": null, "d": [1]}`), &v))
	assert.Equal(t, "x", v.A.String())
	assert.Equal(t, "12.50", v.B.String())
	assert.Equal(t, "", v.C.String())
	assert.Equal(t, "", v.D.String())
}
