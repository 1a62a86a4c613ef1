package accountxml

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"
)

// Miis is the <miis> document listing the Miis of one or more accounts.
type Miis struct {
	XMLName xml.Name `xml:"miis"`
	Miis    []Mii    `xml:"mii"`
}

// Mii is one account's Mii. Data holds the decoded record; DataRaw is the
// base64 text as served.
type Mii struct {
	ID      int64      `xml:"id" json:"id"`
	PID     int64      `xml:"pid" json:"pid"`
	UserID  string     `xml:"user_id" json:"user_id"`
	Name    string     `xml:"name" json:"name"`
	Primary string     `xml:"primary" json:"primary"`
	DataRaw string     `xml:"data" json:"-"`
	Data    []byte     `xml:"-" json:"data"`
	Images  []MiiImage `xml:"images>image" json:"images"`
}

// IsPrimary reports whether this is the account's main Mii.
func (m Mii) IsPrimary() bool { return m.Primary == "Y" }

// Image returns the first image of type typ, such as "standard".
func (m Mii) Image(typ string) (MiiImage, bool) {
	for _, img := range m.Images {
		if img.Type == typ {
			return img, true
		}
	}
	return MiiImage{}, false
}

// MiiImage is a rendered Mii face.
type MiiImage struct {
	ID        int64  `xml:"id" json:"id"`
	Type      string `xml:"type" json:"type"`
	URL       string `xml:"url" json:"url"`
	CachedURL string `xml:"cached_url" json:"cached_url"`
}

// ParseMiis decodes a <miis> document and the base64 record of every Mii.
// A record that is not valid base64 fails the whole document.
func ParseMiis(data []byte) (*Miis, error) {
	var doc Miis
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode miis: %w", err)
	}
	for i := range doc.Miis {
		m := &doc.Miis[i]
		// Long records are sometimes wrapped across lines.
		raw := strings.Join(strings.Fields(m.DataRaw), "")
		if raw == "" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("decode mii %d data: %w", m.ID, err)
		}
		m.Data = decoded
	}
	return &doc, nil
}

// ForPID returns the primary Mii of pid, or its first Mii when none is
// marked primary.
func (d *Miis) ForPID(pid int64) (Mii, bool) {
	if d == nil {
		return Mii{}, false
	}
	var (
		found Mii
		ok    bool
	)
	for _, m := range d.Miis {
		if m.PID != pid {
			continue
		}
		if m.IsPrimary() {
			return m, true
		}
		if !ok {
			found, ok = m, true
		}
	}
	return found, ok
}
