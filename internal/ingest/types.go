package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"
)

// RawOpportunity mirrors one element of the SAM.gov opportunitiesData array.
// Every field is optional; the accessor methods below are the only place
// defaults are applied.
type RawOpportunity struct {
	NoticeID           string       `json:"noticeId"`
	Title              string       `json:"title"`
	SolicitationNumber string       `json:"solicitationNumber"`
	Department         string       `json:"department"`
	SubTier            string       `json:"subTier"`
	Subtier            string       `json:"subtier"`
	Office             string       `json:"office"`
	PostedDate         string       `json:"postedDate"`
	ResponseDeadLine   string       `json:"responseDeadLine"`
	Type               string       `json:"type"`
	NaicsCode          FlexString   `json:"naicsCode"`
	ClassificationCode FlexString   `json:"classificationCode"`
	Active             string       `json:"active"`
	Description        string       `json:"description"`
	UILink             string       `json:"uiLink"`
	AdditionalInfoLink string       `json:"additionalInfoLink"`
	Award              *RawAward    `json:"award"`
	PlaceOfPerformance *RawPlace    `json:"placeOfPerformance"`
	PointOfContact     []RawContact `json:"pointOfContact"`
}

type RawAward struct {
	Amount FlexString `json:"amount"`
	Date   string     `json:"date"`
	Number string     `json:"number"`
}

type RawPlace struct {
	City  *RawNamedCode `json:"city"`
	State *RawNamedCode `json:"state"`
	Zip   string        `json:"zip"`
}

type RawNamedCode struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type RawContact struct {
	Type     string `json:"type"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// FlexString accepts a JSON string, number or null. Any other JSON value
// decodes to the empty string instead of failing the whole response.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*f = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*f = ""
			return nil
		}
		*f = FlexString(s)
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			*f = ""
			return nil
		}
		*f = FlexString(n.String())
	default:
		*f = ""
	}
	return nil
}

func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}

func (r RawOpportunity) City() string {
	if r.PlaceOfPerformance == nil || r.PlaceOfPerformance.City == nil {
		return ""
	}
	return stripTags(r.PlaceOfPerformance.City.Name)
}

func (r RawOpportunity) StateCode() string {
	if r.PlaceOfPerformance == nil || r.PlaceOfPerformance.State == nil {
		return ""
	}
	return strings.ToUpper(cleanText(r.PlaceOfPerformance.State.Code))
}

// AwardAmount returns the raw award amount text, or "" when absent.
func (r RawOpportunity) AwardAmount() string {
	if r.Award == nil {
		return ""
	}
	return r.Award.Amount.String()
}

// AgencyParts returns department, subtier and office. SAM.gov has used both
// "subTier" and "subtier" spellings.
func (r RawOpportunity) AgencyParts() []string {
	subtier := r.SubTier
	if strings.TrimSpace(subtier) == "" {
		subtier = r.Subtier
	}
	return []string{r.Department, subtier, r.Office}
}

// ContactEmail returns the first non-empty point-of-contact email.
func (r RawOpportunity) ContactEmail() string {
	for _, poc := range r.PointOfContact {
		if email := strings.TrimSpace(poc.Email); email != "" {
			return email
		}
	}
	return ""
}

// SearchParams scopes one upstream query.
type SearchParams struct {
	PostedFrom time.Time
	PostedTo   time.Time
	Limit      int
	State      string
}

// OpportunitySource fetches raw opportunities for one query.
type OpportunitySource interface {
	Search(ctx context.Context, params SearchParams) ([]RawOpportunity, error)
}
