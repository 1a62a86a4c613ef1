package abi_test

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/jmerrifield20/nnas/internal/abi"
	"github.com/jmerrifield20/nnas/internal/testpki"
	"github.com/jmerrifield20/nnas/pkg/client"
	"github.com/jmerrifield20/nnas/pkg/device"
)

func profile() device.Profile {
	return device.Profile{
		ClientID:     "ea25c66c26b403376b4c5ed94ab9cdea",
		ClientSecret: "d137be62cb6a2b831cad8c013b92fb55",
		Environment:  "L1",
		Country:      "US",
		Region:       "2",
		SysVersion:   "1111",
		Serial:       "1",
		DeviceID:     "1",
		PlatformID:   "1",
	}
}

func peopleServer() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/api/people/", func(w http.ResponseWriter, r *http.Request) {
		switch strings.TrimPrefix(r.URL.Path, "/v1/api/people/") {
		case "testuser":
			w.WriteHeader(http.StatusOK)
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	return mux
}

func newService(t *testing.T) (*abi.Service, *testpki.Fixture, abi.Handle) {
	t.Helper()
	fx := testpki.StartMTLS(t, peopleServer())
	svc := abi.NewService(zap.NewNop(), client.WithRootCAs(fx.CA.CertPEM()))
	h := svc.NewClient(fx.URL()+"/v1/api", fx.CertPath, fx.KeyPath, profile())
	if h == 0 {
		t.Fatalf("NewClient failed: %s", svc.LastConstructError())
	}
	t.Cleanup(func() { svc.Destroy(h) })
	return svc, fx, h
}

func TestService_lookups(t *testing.T) {
	svc, _, h := newService(t)

	cases := []struct {
		username   string
		code, bool int32
	}{
		{"testuser", abi.CodeExists, 1},
		{"nobody", abi.CodeDoesNotExist, 0},
	}
	for _, tc := range cases {
		if got := svc.LookupUser(h, tc.username); got != tc.code {
			t.Errorf("LookupUser(%s) = %d, want %d", tc.username, got, tc.code)
		}
		if e := svc.LastError(h); e != "" {
			t.Errorf("LastError after %s = %q, want empty", tc.username, e)
		}
		if got := svc.DoesUserExist(h, tc.username); got != tc.bool {
			t.Errorf("DoesUserExist(%s) = %d, want %d", tc.username, got, tc.bool)
		}
	}
}

func TestService_errorIsZeroForBoolean(t *testing.T) {
	svc, _, h := newService(t)

	if got := svc.LookupUser(h, "broken"); got != abi.CodeError {
		t.Errorf("LookupUser(broken) = %d, want %d", got, abi.CodeError)
	}
	if e := svc.LastError(h); !strings.Contains(e, "500") {
		t.Errorf("LastError = %q, want it to carry the status", e)
	}
	if got := svc.DoesUserExist(h, "broken"); got != 0 {
		t.Errorf("DoesUserExist(broken) = %d, want 0", got)
	}

	// A later success clears the recorded error.
	svc.LookupUser(h, "testuser")
	if e := svc.LastError(h); e != "" {
		t.Errorf("LastError after success = %q, want empty", e)
	}
}

func TestService_constructionFailure(t *testing.T) {
	svc := abi.NewService(nil)

	if h := svc.NewClient("ftp://host", "c", "k", profile()); h != 0 {
		t.Errorf("NewClient(ftp) = %d, want 0", h)
	}
	if e := svc.LastConstructError(); !strings.Contains(e, "invalid endpoint") {
		t.Errorf("LastConstructError = %q, want invalid endpoint", e)
	}

	missing := filepath.Join(t.TempDir(), "absent.pem")
	if h := svc.NewClient("https://host/v1/api", missing, missing, profile()); h != 0 {
		t.Errorf("NewClient(missing cert) = %d, want 0", h)
	}
	if e := svc.LastConstructError(); !strings.Contains(e, "load client certificate") {
		t.Errorf("LastConstructError = %q, want load client certificate", e)
	}
	if n := svc.Live(); n != 0 {
		t.Errorf("Live() = %d, want 0", n)
	}
}

func TestService_constructErrorClearedOnSuccess(t *testing.T) {
	fx := testpki.StartMTLS(t, peopleServer())
	svc := abi.NewService(nil, client.WithRootCAs(fx.CA.CertPEM()))

	if h := svc.NewClient("", "", "", profile()); h != 0 {
		t.Fatalf("NewClient(\"\") = %d, want 0", h)
	}
	if svc.LastConstructError() == "" {
		t.Fatal("LastConstructError is empty after a failure")
	}

	h := svc.NewClient(fx.URL()+"/v1/api", fx.CertPath, fx.KeyPath, profile())
	if h == 0 {
		t.Fatalf("NewClient failed: %s", svc.LastConstructError())
	}
	if e := svc.LastConstructError(); e != "" {
		t.Errorf("LastConstructError = %q after success, want empty", e)
	}
	svc.Destroy(h)
}

func TestService_constructReturnsOwnReason(t *testing.T) {
	fx := testpki.StartMTLS(t, peopleServer())
	svc := abi.NewService(nil, client.WithRootCAs(fx.CA.CertPEM()))
	missing := filepath.Join(t.TempDir(), "absent.pem")

	// Failing calls race each other and a succeeding one; every caller must
	// get the reason for its own arguments.
	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	handles := make([]abi.Handle, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 3 {
			case 0:
				handles[i], errs[i] = svc.Construct(fmt.Sprintf("https:///call-%d/", i), "c", "k", profile())
			case 1:
				handles[i], errs[i] = svc.Construct("https://host/v1/api", missing, missing, profile())
			default:
				handles[i], errs[i] = svc.Construct(fx.URL()+"/v1/api", fx.CertPath, fx.KeyPath, profile())
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		switch i % 3 {
		case 0:
			if handles[i] != 0 || !errors.Is(errs[i], client.ErrInvalidEndpoint) {
				t.Errorf("call %d: %d, %v, want invalid endpoint", i, handles[i], errs[i])
			} else if !strings.Contains(errs[i].Error(), fmt.Sprintf("call-%d/", i)) {
				t.Errorf("call %d: error %q names another call's endpoint", i, errs[i])
			}
		case 1:
			if handles[i] != 0 || !errors.Is(errs[i], client.ErrCertLoad) {
				t.Errorf("call %d: %d, %v, want cert load failure", i, handles[i], errs[i])
			}
		default:
			if handles[i] == 0 || errs[i] != nil {
				t.Errorf("call %d: %d, %v, want a handle", i, handles[i], errs[i])
				continue
			}
			svc.Destroy(handles[i])
		}
	}
	if e := svc.LastConstructError(); e != "" {
		t.Errorf("Construct wrote the shared slot: %q", e)
	}
}

func TestService_destroyedHandle(t *testing.T) {
	svc, _, h := newService(t)

	if !svc.Destroy(h) {
		t.Fatal("first Destroy reported a dead handle")
	}
	if svc.Destroy(h) {
		t.Error("second Destroy reported a live handle")
	}
	if got := svc.LookupUser(h, "testuser"); got != abi.CodeError {
		t.Errorf("LookupUser on destroyed handle = %d, want %d", got, abi.CodeError)
	}
	if got := svc.DoesUserExist(h, "testuser"); got != 0 {
		t.Errorf("DoesUserExist on destroyed handle = %d, want 0", got)
	}
	if e := svc.LastError(h); e != abi.ErrInvalidHandle.Error() {
		t.Errorf("LastError = %q, want %q", e, abi.ErrInvalidHandle)
	}
	if n := svc.Live(); n != 0 {
		t.Errorf("Live() = %d, want 0", n)
	}
}

func TestService_unknownHandle(t *testing.T) {
	svc := abi.NewService(nil)
	for _, h := range []abi.Handle{0, 12345} {
		if got := svc.LookupUser(h, "testuser"); got != abi.CodeError {
			t.Errorf("LookupUser(%d) = %d, want %d", h, got, abi.CodeError)
		}
	}
	if svc.Destroy(0) {
		t.Error("Destroy(0) reported a live handle")
	}
}

func TestService_concurrentLookups(t *testing.T) {
	svc, _, h := newService(t)

	var wg sync.WaitGroup
	codes := make([]int32, 32)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "nobody"
			if i%2 == 0 {
				name = "testuser"
			}
			codes[i] = svc.LookupUser(h, name)
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		want := abi.CodeDoesNotExist
		if i%2 == 0 {
			want = abi.CodeExists
		}
		if code != want {
			t.Errorf("lookup %d = %d, want %d", i, code, want)
		}
	}
}

func TestService_multipleClientsIndependent(t *testing.T) {
	svc, fx, h1 := newService(t)
	h2 := svc.NewClient(fx.URL()+"/v1/api", fx.CertPath, fx.KeyPath, profile())
	if h2 == 0 || h2 == h1 {
		t.Fatalf("second handle = %d (first %d)", h2, h1)
	}

	svc.LookupUser(h1, "broken")
	if svc.LastError(h1) == "" {
		t.Error("LastError(h1) is empty after a failed lookup")
	}
	if e := svc.LastError(h2); e != "" {
		t.Errorf("LastError(h2) = %q, want empty", e)
	}

	if !svc.Destroy(h2) {
		t.Fatal("Destroy(h2) reported a dead handle")
	}
	if got := svc.LookupUser(h1, "testuser"); got != abi.CodeExists {
		t.Errorf("LookupUser(h1) = %d after destroying h2, want %d", got, abi.CodeExists)
	}
}
