// Package accountxml decodes the XML documents returned by the account server:
// error sheets, agreement (EULA) sheets and mapped-id sheets.
package accountxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// ErrorSheet is the <errors> document the server sends for rejected requests.
type ErrorSheet struct {
	XMLName xml.Name       `xml:"errors"`
	Errors  []ServiceError `xml:"error"`
}

// ServiceError is a single <error> entry of an ErrorSheet.
type ServiceError struct {
	Cause   string `xml:"cause" json:"cause,omitempty"`
	Code    Code   `xml:"code" json:"code"`
	Message string `xml:"message" json:"message,omitempty"`
}

func (e ServiceError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code.Description()
	}
	if e.Cause != "" {
		return fmt.Sprintf("account server error %s (%s): %s", e.Code, e.Cause, msg)
	}
	return fmt.Sprintf("account server error %s: %s", e.Code, msg)
}

// ParseErrorSheet decodes an <errors> document.
func ParseErrorSheet(data []byte) (*ErrorSheet, error) {
	var sheet ErrorSheet
	if err := xml.Unmarshal(data, &sheet); err != nil {
		return nil, fmt.Errorf("decode error sheet: %w", err)
	}
	return &sheet, nil
}

// LooksLikeErrorSheet reports whether data plausibly holds an <errors>
// document, without fully decoding it.
func LooksLikeErrorSheet(data []byte) bool {
	return bytes.Contains(data, []byte("<errors"))
}

// Has reports whether any entry carries code.
func (s *ErrorSheet) Has(code Code) bool {
	if s == nil {
		return false
	}
	for _, e := range s.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// First returns the first entry, if any.
func (s *ErrorSheet) First() (ServiceError, bool) {
	if s == nil || len(s.Errors) == 0 {
		return ServiceError{}, false
	}
	return s.Errors[0], true
}
