// Package client is a Go client for the Nintendo Network account server.
//
// The account server authenticates callers twice: the TLS handshake must
// present a console client certificate, and every request must carry a set
// of device headers (client id and secret, serial, region and so on). A
// Client holds both and answers one question cheaply and concurrently: is
// this account id taken?
//
// # Creating a client
//
//	profile := device.Profile{
//	    ClientID:     "ea25c66c26b403376b4c5ed94ab9cdea",
//	    ClientSecret: "d137be62cb6a2b831cad8c013b92fb55",
//	    Environment:  "L1",
//	    Country:      "US",
//	    Region:       "2",
//	    SysVersion:   "1111",
//	    Serial:       "1",
//	    DeviceID:     "1",
//	    PlatformID:   "1",
//	}
//	c, err := client.New("https://account.nintendo.net/v1/api",
//	    "ctr-common-1.crt", "ctr-common-1.key", profile,
//	    client.WithRules(client.AccountServerRules()),
//	    client.WithHeader("X-Nintendo-FPD-Version", "0000"),
//	    client.WithInsecureSkipVerify(),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
// Certificates and keys may be PEM or raw DER. A bad file fails New with an
// error matching ErrCertLoad; the files are never re-read afterwards.
//
// # Looking up an account id
//
// DoesUserExist returns a three-way LookupResult:
//
//	res := c.DoesUserExist(ctx, "testuser")
//	switch res.Outcome {
//	case client.OutcomeExists:
//	    fmt.Println("taken")
//	case client.OutcomeDoesNotExist:
//	    fmt.Println("free")
//	default:
//	    if client.IsRetryable(res.Err) {
//	        // dial failure or timeout: try again later
//	    }
//	    log.Println(res.Err)
//	}
//
// Exists narrows the result to a boolean. Its false is ambiguous: it means
// either "free" or "could not tell". Callers that need to know whether a
// name is available must look at the full result.
//
// # Classification rules
//
// How responses map to outcomes is held in Rules. DefaultRules treat a 2xx
// status as existence and 404 as absence. AccountServerRules follow the
// production server, which answers 200 for a free id and returns an error
// sheet with code 0100 for a taken one. Every response that no rule covers
// is an OutcomeError carrying an *Error of KindUnexpected; it is never
// folded into OutcomeDoesNotExist.
//
// # Operational options
//
// WithCacheTTL caches definitive answers, WithRateLimit throttles outgoing
// requests, WithRetry retries dial failures and timeouts with exponential
// backoff, and WithMetrics exports Prometheus counters and a latency
// histogram. WithLogger attaches a zap logger; each lookup is logged with a
// lookup_id field.
package client
