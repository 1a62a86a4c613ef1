package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/jmerrifield20/nnas/internal/config"
	"github.com/jmerrifield20/nnas/internal/testpki"
	"github.com/jmerrifield20/nnas/pkg/client"
)

const sampleYAML = `
endpoint: https://account.nintendo.net/v1/api
cert_path: /etc/nnas/ctr-common-1.crt
key_path: /etc/nnas/ctr-common-1.key
insecure_skip_verify: true
timeout: 3s
cache_ttl: 1m
rate_limit:
  rps: 5
  burst: 2
retry:
  max_elapsed: 15s
rules: account-server
headers:
  X-Extra: yes
device:
  client_id: ea25c66c26b403376b4c5ed94ab9cdea
  client_secret: d137be62cb6a2b831cad8c013b92fb55
  environment: L1
  country: US
  region: "2"
  sys_version: "1111"
  serial: "1"
  device_id: "1"
  platform_id: "1"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nnas.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func mustLoad(t *testing.T, path string, flags *pflag.FlagSet) *config.Config {
	t.Helper()
	cfg, err := config.Load(path, flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

// ── Load ─────────────────────────────────────────────────────────────────────

func TestLoad_file(t *testing.T) {
	cfg := mustLoad(t, writeConfig(t, sampleYAML), nil)

	if cfg.Endpoint != "https://account.nintendo.net/v1/api" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.CertPath != "/etc/nnas/ctr-common-1.crt" {
		t.Errorf("CertPath = %q", cfg.CertPath)
	}
	if !cfg.InsecureSkipVerify {
		t.Error("InsecureSkipVerify = false, want true")
	}
	if cfg.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", cfg.Timeout)
	}
	if cfg.CacheTTL != time.Minute {
		t.Errorf("CacheTTL = %v, want 1m", cfg.CacheTTL)
	}
	if cfg.RateLimit.RPS != 5 || cfg.RateLimit.Burst != 2 {
		t.Errorf("RateLimit = %+v, want 5/2", cfg.RateLimit)
	}
	if cfg.Retry.MaxElapsed != 15*time.Second {
		t.Errorf("Retry.MaxElapsed = %v, want 15s", cfg.Retry.MaxElapsed)
	}
	if cfg.Rules != client.RulesAccountServer {
		t.Errorf("Rules = %q, want %q", cfg.Rules, client.RulesAccountServer)
	}

	p := cfg.Device.Profile()
	if p.ClientID != "ea25c66c26b403376b4c5ed94ab9cdea" || p.Region != "2" || p.SysVersion != "1111" {
		t.Errorf("Profile = %+v", p)
	}
	if p.DeviceCert != "" {
		t.Errorf("DeviceCert = %q, want empty", p.DeviceCert)
	}
}

func TestLoad_defaults(t *testing.T) {
	cfg := mustLoad(t, writeConfig(t, "endpoint: https://host/v1/api\n"), nil)

	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
	if cfg.CacheTTL != 0 || cfg.RateLimit.RPS != 0 {
		t.Errorf("CacheTTL = %v, RPS = %v, want zero", cfg.CacheTTL, cfg.RateLimit.RPS)
	}
	if cfg.Rules != client.RulesDefault {
		t.Errorf("Rules = %q, want %q", cfg.Rules, client.RulesDefault)
	}
	if cfg.LookupPath != client.DefaultLookupPath {
		t.Errorf("LookupPath = %q, want %q", cfg.LookupPath, client.DefaultLookupPath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if got := cfg.Headers["x-nintendo-fpd-version"]; got != "0000" {
		t.Errorf("FPD version header = %q, want 0000", got)
	}
}

func TestLoad_missingDefaultFileIsFine(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg := mustLoad(t, "", nil)
	if cfg.Endpoint != "" {
		t.Errorf("Endpoint = %q, want empty", cfg.Endpoint)
	}
}

func TestLoad_missingExplicitFileFails(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

func TestLoad_env(t *testing.T) {
	t.Setenv("NNAS_ENDPOINT", "https://env.example/v1/api")
	t.Setenv("NNAS_DEVICE_SERIAL", "env-serial")
	t.Setenv("NNAS_RATE_LIMIT_RPS", "9")

	cfg := mustLoad(t, writeConfig(t, sampleYAML), nil)

	if cfg.Endpoint != "https://env.example/v1/api" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.Device.Serial != "env-serial" {
		t.Errorf("Device.Serial = %q", cfg.Device.Serial)
	}
	if cfg.RateLimit.RPS != 9 {
		t.Errorf("RateLimit.RPS = %v, want 9", cfg.RateLimit.RPS)
	}
}

func TestLoad_flagsWin(t *testing.T) {
	t.Setenv("NNAS_ENDPOINT", "https://env.example/v1/api")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("endpoint", "", "")
	fs.String("cert-path", "", "")
	fs.String("key-path", "", "")
	fs.String("unrelated", "x", "")
	if err := fs.Parse([]string{"--endpoint=https://flag.example/v1/api", "--cert-path=/tmp/c.pem"}); err != nil {
		t.Fatal(err)
	}

	cfg := mustLoad(t, writeConfig(t, sampleYAML), fs)

	if cfg.Endpoint != "https://flag.example/v1/api" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.CertPath != "/tmp/c.pem" {
		t.Errorf("CertPath = %q", cfg.CertPath)
	}
	// Unset flags do not shadow the file.
	if cfg.KeyPath != "/etc/nnas/ctr-common-1.key" {
		t.Errorf("KeyPath = %q", cfg.KeyPath)
	}
}

func TestLoad_invalid(t *testing.T) {
	cases := map[string]string{
		"bad rules":     "rules: sometimes\n",
		"bad endpoint":  "endpoint: not a url\n",
		"zero timeout":  "timeout: 0s\n",
		"negative rps":  "rate_limit:\n  rps: -1\n",
		"bad log level": "log_level: loud\n",
		"bad yaml":      "endpoint: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := config.Load(writeConfig(t, body), nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// ── ValidateForClient ────────────────────────────────────────────────────────

func TestValidateForClient(t *testing.T) {
	err := (&config.Config{}).ValidateForClient()
	if err == nil {
		t.Fatal("expected error for an empty config")
	}
	for _, key := range []string{"endpoint", "cert_path", "key_path"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}

	cfg := &config.Config{Endpoint: "https://host", CertPath: "c", KeyPath: "k"}
	if err := cfg.ValidateForClient(); err != nil {
		t.Errorf("ValidateForClient: %v", err)
	}
}

// ── ClientOptions ────────────────────────────────────────────────────────────

func TestClientOptions_buildsClient(t *testing.T) {
	ca, err := testpki.NewCA("Test CA")
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := ca.IssueClient("client")
	if err != nil {
		t.Fatal(err)
	}
	certPath, keyPath, err := leaf.WriteFiles(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	caPath := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(caPath, ca.CertPEM(), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := mustLoad(t, writeConfig(t, sampleYAML), nil)
	cfg.CertPath, cfg.KeyPath, cfg.CAPath = certPath, keyPath, caPath
	if err := cfg.ValidateForClient(); err != nil {
		t.Fatal(err)
	}

	opts, err := cfg.ClientOptions(nil, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("ClientOptions: %v", err)
	}
	c, err := client.New(cfg.Endpoint, cfg.CertPath, cfg.KeyPath, cfg.Device.Profile(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()
	if got := c.Endpoint(); got != "https://account.nintendo.net/v1/api" {
		t.Errorf("Endpoint() = %q", got)
	}
}

func TestClientOptions_badRules(t *testing.T) {
	cfg := &config.Config{Rules: "bogus"}
	if _, err := cfg.ClientOptions(nil, nil); !errors.Is(err, client.ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestClientOptions_missingCA(t *testing.T) {
	cfg := &config.Config{CAPath: filepath.Join(t.TempDir(), "absent.pem")}
	if _, err := cfg.ClientOptions(nil, nil); err == nil {
		t.Error("expected error for a missing CA file")
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]string{"": "info", "debug": "debug", "warn": "warn"} {
		lvl, err := config.ParseLogLevel(in)
		if err != nil {
			t.Errorf("ParseLogLevel(%q): %v", in, err)
			continue
		}
		if lvl.String() != want {
			t.Errorf("ParseLogLevel(%q) = %s, want %s", in, lvl, want)
		}
	}
	if _, err := config.ParseLogLevel("loud"); err == nil {
		t.Error("expected error for an unknown level")
	}
}
