// Package device describes the console identity that the account server
// expects on every request.
//
// A Profile is a plain value: the eleven fields are copied into request
// headers verbatim, one header per field. Empty fields are still sent as
// empty headers because the server expects a fixed header set.
package device

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Profile holds the identity attributes of the device a client impersonates.
type Profile struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	DeviceCert   string `json:"device_cert"`
	Environment  string `json:"environment"`
	Country      string `json:"country"`
	Region       string `json:"region"`
	SysVersion   string `json:"sys_version"`
	Serial       string `json:"serial"`
	DeviceID     string `json:"device_id"`
	DeviceType   string `json:"device_type"`
	PlatformID   string `json:"platform_id"`
}

// Field identifies one attribute of a Profile.
type Field int

const (
	FieldClientID Field = iota
	FieldClientSecret
	FieldDeviceCert
	FieldEnvironment
	FieldCountry
	FieldRegion
	FieldSysVersion
	FieldSerial
	FieldDeviceID
	FieldDeviceType
	FieldPlatformID

	numFields
)

var fieldNames = [numFields]string{
	"client_id",
	"client_secret",
	"device_cert",
	"environment",
	"country",
	"region",
	"sys_version",
	"serial",
	"device_id",
	"device_type",
	"platform_id",
}

// Fields returns every profile field in a stable order.
func Fields() []Field {
	out := make([]Field, 0, numFields)
	for f := Field(0); f < numFields; f++ {
		out = append(out, f)
	}
	return out
}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldNames[f]
}

// Value returns the profile's value for f, or "" for an unknown field.
func (p Profile) Value(f Field) string {
	switch f {
	case FieldClientID:
		return p.ClientID
	case FieldClientSecret:
		return p.ClientSecret
	case FieldDeviceCert:
		return p.DeviceCert
	case FieldEnvironment:
		return p.Environment
	case FieldCountry:
		return p.Country
	case FieldRegion:
		return p.Region
	case FieldSysVersion:
		return p.SysVersion
	case FieldSerial:
		return p.Serial
	case FieldDeviceID:
		return p.DeviceID
	case FieldDeviceType:
		return p.DeviceType
	case FieldPlatformID:
		return p.PlatformID
	}
	return ""
}

// HeaderNames maps each profile field to the request header carrying it.
type HeaderNames map[Field]string

// DefaultHeaderNames returns the header names used by the account server.
func DefaultHeaderNames() HeaderNames {
	return HeaderNames{
		FieldClientID:     "X-Nintendo-Client-ID",
		FieldClientSecret: "X-Nintendo-Client-Secret",
		FieldDeviceCert:   "X-Nintendo-Device-Cert",
		FieldEnvironment:  "X-Nintendo-Environment",
		FieldCountry:      "X-Nintendo-Country",
		FieldRegion:       "X-Nintendo-Region",
		FieldSysVersion:   "X-Nintendo-System-Version",
		FieldSerial:       "X-Nintendo-Serial-Number",
		FieldDeviceID:     "X-Nintendo-Device-ID",
		FieldDeviceType:   "X-Nintendo-Device-Type",
		FieldPlatformID:   "X-Nintendo-Platform-ID",
	}
}

// Validate reports an error unless every field has exactly one header name,
// each name is a valid header token and no two fields share a header.
func (h HeaderNames) Validate() error {
	var errs []error
	seen := make(map[string]Field, len(h))
	for _, f := range Fields() {
		name := h[f]
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("no header name for %s", f))
			continue
		}
		if !httpguts.ValidHeaderFieldName(name) {
			errs = append(errs, fmt.Errorf("invalid header name %q for %s", name, f))
			continue
		}
		canon := http.CanonicalHeaderKey(name)
		if other, dup := seen[canon]; dup {
			errs = append(errs, fmt.Errorf("header %q used by both %s and %s", name, other, f))
			continue
		}
		seen[canon] = f
	}
	for f := range h {
		if f < 0 || f >= numFields {
			errs = append(errs, fmt.Errorf("unknown %s", f))
		}
	}
	return errors.Join(errs...)
}

// Clone returns a copy of h that can be modified independently.
func (h HeaderNames) Clone() HeaderNames {
	out := make(HeaderNames, len(h))
	for f, name := range h {
		out[f] = name
	}
	return out
}

// Apply sets one header per profile field on hdr. Existing values for those
// headers are replaced.
func (p Profile) Apply(hdr http.Header, names HeaderNames) {
	for _, f := range Fields() {
		name, ok := names[f]
		if !ok {
			continue
		}
		hdr.Set(name, p.Value(f))
	}
}
