package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jmerrifield20/nnas/pkg/device"
)

// DefaultLookupPath is appended to the endpoint for existence lookups.
const DefaultLookupPath = "/people/"

// RequestBuilder shapes account server requests. It carries no per-request
// state and may be shared.
type RequestBuilder struct {
	endpoint   *url.URL
	lookupPath []string
	names      device.HeaderNames
	extra      http.Header
}

// NewRequestBuilder returns a builder for endpoint. names must pass
// device.HeaderNames.Validate; extra headers are sent on every request and
// lose to profile headers of the same name.
func NewRequestBuilder(endpoint *url.URL, lookupPath string, names device.HeaderNames, extra http.Header) (*RequestBuilder, error) {
	if err := names.Validate(); err != nil {
		return nil, &Error{Kind: KindConfig, Op: "header names", Err: err}
	}
	if lookupPath == "" {
		lookupPath = DefaultLookupPath
	}
	base := *endpoint
	base.RawQuery = ""
	base.Fragment = ""
	return &RequestBuilder{
		endpoint:   &base,
		lookupPath: splitPath(lookupPath),
		names:      names.Clone(),
		extra:      extra.Clone(),
	}, nil
}

// BuildExistenceRequest returns GET {endpoint}{lookup path}{username} with
// every profile header set. The username is escaped as a single path
// segment, so "/", "?" and dot segments such as ".." cannot change the
// target. An empty username still yields a well-formed request.
func (b *RequestBuilder) BuildExistenceRequest(ctx context.Context, username string, profile device.Profile) (*http.Request, error) {
	segments := append(append([]string(nil), b.lookupPath...), username)
	return b.build(ctx, http.MethodGet, segments, nil, profile)
}

// BuildAgreementsRequest returns the request for the EULA of country at
// version.
func (b *RequestBuilder) BuildAgreementsRequest(ctx context.Context, country, version string, profile device.Profile) (*http.Request, error) {
	segments := []string{"content", "agreements", "Nintendo-Network-EULA", country, version}
	return b.build(ctx, http.MethodGet, segments, nil, profile)
}

// BuildMappedIDsRequest returns the request translating ids from one id
// space to another.
func (b *RequestBuilder) BuildMappedIDsRequest(ctx context.Context, input, output string, ids []string, profile device.Profile) (*http.Request, error) {
	q := url.Values{}
	q.Set("input_type", input)
	q.Set("output_type", output)
	q.Set("input", strings.Join(ids, ","))
	return b.build(ctx, http.MethodGet, []string{"admin", "mapped_ids"}, q, profile)
}

// BuildMiisRequest returns the request for the Miis of the given principal
// ids.
func (b *RequestBuilder) BuildMiisRequest(ctx context.Context, pids []int64, profile device.Profile) (*http.Request, error) {
	strs := make([]string, len(pids))
	for i, pid := range pids {
		strs[i] = strconv.FormatInt(pid, 10)
	}
	q := url.Values{}
	q.Set("pids", strings.Join(strs, ","))
	return b.build(ctx, http.MethodGet, []string{"miis"}, q, profile)
}

func (b *RequestBuilder) build(ctx context.Context, method string, segments []string, query url.Values, profile device.Profile) (*http.Request, error) {
	u := b.resolve(segments)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for name, vals := range b.extra {
		for _, v := range vals {
			req.Header.Add(name, v)
		}
	}
	profile.Apply(req.Header, b.names)
	return req, nil
}

// resolve appends escaped segments to the endpoint path.
func (b *RequestBuilder) resolve(segments []string) *url.URL {
	u := *b.endpoint
	rawBase := strings.TrimRight(b.endpoint.EscapedPath(), "/")
	base := strings.TrimRight(b.endpoint.Path, "/")

	var raw, plain strings.Builder
	raw.WriteString(rawBase)
	plain.WriteString(base)
	for _, s := range segments {
		raw.WriteByte('/')
		raw.WriteString(escapeSegment(s))
		plain.WriteByte('/')
		plain.WriteString(s)
	}
	u.Path = plain.String()
	u.RawPath = raw.String()
	return &u
}

// escapeSegment is url.PathEscape plus dot segments, which PathEscape leaves
// alone and which servers and proxies collapse.
func escapeSegment(s string) string {
	switch s {
	case ".":
		return "%2E"
	case "..":
		return "%2E%2E"
	}
	return url.PathEscape(s)
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
