package accountxml

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"time"
)

// LatestVersion asks the server for the newest agreement revision.
const LatestVersion = "@latest"

// Agreements is the <agreements> document served for EULA requests.
type Agreements struct {
	XMLName    xml.Name    `xml:"agreements"`
	Agreements []Agreement `xml:"agreement"`
}

// Agreement is one localized agreement text.
type Agreement struct {
	Country        string `xml:"country" json:"country"`
	Language       string `xml:"language" json:"language"`
	LanguageName   string `xml:"language_name" json:"language_name"`
	PublishDateRaw string `xml:"publish_date" json:"publish_date"`
	AcceptText     CData  `xml:"texts>agree_text" json:"accept_text"`
	DeclineText    CData  `xml:"texts>non_agree_text" json:"decline_text"`
	Title          CData  `xml:"texts>main_title" json:"title"`
	Body           CData  `xml:"texts>main_text" json:"body"`
	Type           string `xml:"type" json:"type"`
	Version        string `xml:"version" json:"version"`
}

// CData is character data that is written back as a CDATA section.
type CData struct {
	Text string `xml:",cdata"`
}

func (c CData) String() string { return c.Text }

// MarshalJSON renders CData as a bare string.
func (c CData) MarshalJSON() ([]byte, error) { return json.Marshal(c.Text) }

// The server omits the zone on publish dates.
var publishLayouts = []string{time.RFC3339, "2006-01-02T15:04:05"}

// PublishDate parses the publish date. Dates without a zone are taken as UTC.
func (a Agreement) PublishDate() (time.Time, error) {
	var lastErr error
	for _, layout := range publishLayouts {
		t, err := time.Parse(layout, a.PublishDateRaw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("parse publish date %q: %w", a.PublishDateRaw, lastErr)
}

// ParseAgreements decodes an <agreements> document.
func ParseAgreements(data []byte) (*Agreements, error) {
	var doc Agreements
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode agreements: %w", err)
	}
	return &doc, nil
}
