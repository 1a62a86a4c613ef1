package accountxml

import (
	"encoding/xml"
	"fmt"
)

// IDType names an identifier space accepted by the id mapping endpoint.
type IDType string

const (
	IDTypeUser IDType = "user" // account id (NNID)
	IDTypePID  IDType = "pid"  // principal id
)

// MappedIDs is the <mapped_ids> document.
type MappedIDs struct {
	XMLName xml.Name   `xml:"mapped_ids"`
	IDs     []MappedID `xml:"mapped_id"`
}

// MappedID pairs an input identifier with its translation. OutID is empty
// when the input has no counterpart.
type MappedID struct {
	InID  string `xml:"in_id" json:"in_id"`
	OutID string `xml:"out_id" json:"out_id"`
}

// ParseMappedIDs decodes a <mapped_ids> document.
func ParseMappedIDs(data []byte) (*MappedIDs, error) {
	var doc MappedIDs
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode mapped ids: %w", err)
	}
	return &doc, nil
}

// Lookup returns the OutID for in.
func (m *MappedIDs) Lookup(in string) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, id := range m.IDs {
		if id.InID == in {
			return id.OutID, id.OutID != ""
		}
	}
	return "", false
}
