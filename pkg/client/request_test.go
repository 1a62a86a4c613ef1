package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/jmerrifield20/nnas/pkg/client"
	"github.com/jmerrifield20/nnas/pkg/device"
)

func newBuilder(t *testing.T, endpoint, lookupPath string, extra http.Header) *client.RequestBuilder {
	t.Helper()
	u, err := url.Parse(endpoint)
	if err != nil {
		t.Fatal(err)
	}
	b, err := client.NewRequestBuilder(u, lookupPath, device.DefaultHeaderNames(), extra)
	if err != nil {
		t.Fatalf("NewRequestBuilder: %v", err)
	}
	return b
}

func TestBuildExistenceRequest_url(t *testing.T) {
	cases := []struct {
		name     string
		endpoint string
		path     string
		username string
		want     string
	}{
		{"plain", "https://account.nintendo.net/v1/api", "", "testuser", "https://account.nintendo.net/v1/api/people/testuser"},
		{"trailing slash", "https://account.nintendo.net/v1/api/", "", "testuser", "https://account.nintendo.net/v1/api/people/testuser"},
		{"slash in name", "https://host/v1/api", "", "a/b", "https://host/v1/api/people/a%2Fb"},
		{"query chars", "https://host/v1/api", "", "who?x=1#y", "https://host/v1/api/people/who%3Fx=1%23y"},
		{"space", "https://host", "", "a b", "https://host/people/a%20b"},
		{"empty", "https://host/v1/api", "", "", "https://host/v1/api/people/"},
		{"dot dot", "https://host/v1/api", "", "..", "https://host/v1/api/people/%2E%2E"},
		{"dot", "https://host/v1/api", "", ".", "https://host/v1/api/people/%2E"},
		{"three dots", "https://host/v1/api", "", "...", "https://host/v1/api/people/..."},
		{"custom path", "https://host/v1/api", "/users/exists", "bob", "https://host/v1/api/users/exists/bob"},
		{"endpoint query dropped", "https://host/v1/api?debug=1", "", "bob", "https://host/v1/api/people/bob"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newBuilder(t, tc.endpoint, tc.path, nil)
			req, err := b.BuildExistenceRequest(context.Background(), tc.username, testProfile())
			if err != nil {
				t.Fatalf("BuildExistenceRequest: %v", err)
			}
			if got := req.URL.String(); got != tc.want {
				t.Errorf("URL = %q, want %q", got, tc.want)
			}
			if req.Method != http.MethodGet {
				t.Errorf("Method = %s, want GET", req.Method)
			}
		})
	}
}

func TestBuildExistenceRequest_headers(t *testing.T) {
	extra := http.Header{}
	extra.Set("X-Nintendo-FPD-Version", "0000")
	extra.Set("X-Nintendo-Client-ID", "overridden")

	b := newBuilder(t, "https://host/v1/api", "", extra)
	p := testProfile()
	req, err := b.BuildExistenceRequest(context.Background(), "bob", p)
	if err != nil {
		t.Fatal(err)
	}

	names := device.DefaultHeaderNames()
	for _, f := range device.Fields() {
		vals := req.Header.Values(names[f])
		if len(vals) != 1 || vals[0] != p.Value(f) {
			t.Errorf("%s = %q, want [%q]", names[f], vals, p.Value(f))
		}
	}
	if got := req.Header.Get("X-Nintendo-FPD-Version"); got != "0000" {
		t.Errorf("FPD version = %q, want 0000", got)
	}
}

func TestBuildExistenceRequest_context(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	b := newBuilder(t, "https://host", "", nil)
	req, err := b.BuildExistenceRequest(ctx, "bob", testProfile())
	if err != nil {
		t.Fatal(err)
	}
	if req.Context().Value(key{}) != "v" {
		t.Error("request does not carry the caller's context")
	}
}

func TestBuildAgreementsRequest(t *testing.T) {
	b := newBuilder(t, "https://account.nintendo.net/v1/api", "", nil)
	req, err := b.BuildAgreementsRequest(context.Background(), "US", "@latest", testProfile())
	if err != nil {
		t.Fatal(err)
	}
	want := "https://account.nintendo.net/v1/api/content/agreements/Nintendo-Network-EULA/US/@latest"
	if got := req.URL.String(); got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}

func TestBuildMappedIDsRequest(t *testing.T) {
	b := newBuilder(t, "https://account.nintendo.net/v1/api", "", nil)
	req, err := b.BuildMappedIDsRequest(context.Background(), "user", "pid", []string{"alice", "bob"}, testProfile())
	if err != nil {
		t.Fatal(err)
	}
	if req.URL.Path != "/v1/api/admin/mapped_ids" {
		t.Errorf("Path = %q", req.URL.Path)
	}
	q := req.URL.Query()
	if q.Get("input_type") != "user" || q.Get("output_type") != "pid" || q.Get("input") != "alice,bob" {
		t.Errorf("query = %v", q)
	}
}

func TestBuildMiisRequest(t *testing.T) {
	b := newBuilder(t, "https://account.nintendo.net/v1/api", "", nil)
	req, err := b.BuildMiisRequest(context.Background(), []int64{1799704789, 7}, testProfile())
	if err != nil {
		t.Fatal(err)
	}
	if req.URL.Path != "/v1/api/miis" {
		t.Errorf("Path = %q", req.URL.Path)
	}
	if got := req.URL.Query().Get("pids"); got != "1799704789,7" {
		t.Errorf("pids = %q, want 1799704789,7", got)
	}
}

func TestNewRequestBuilder_invalidNames(t *testing.T) {
	u, _ := url.Parse("https://host")
	names := device.DefaultHeaderNames()
	names[device.FieldSerial] = names[device.FieldDeviceID]

	_, err := client.NewRequestBuilder(u, "", names, nil)
	if !errors.Is(err, client.ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestRequestBuilder_namesCopied(t *testing.T) {
	u, _ := url.Parse("https://host")
	names := device.DefaultHeaderNames()
	b, err := client.NewRequestBuilder(u, "", names, nil)
	if err != nil {
		t.Fatal(err)
	}
	names[device.FieldSerial] = "X-Changed"

	req, err := b.BuildExistenceRequest(context.Background(), "bob", testProfile())
	if err != nil {
		t.Fatal(err)
	}
	if req.Header.Get("X-Changed") != "" {
		t.Error("builder saw a later change to its header names")
	}
}
