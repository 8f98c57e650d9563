// Package httpclient provides a small HTTP client with bearer
// authentication, typed error classification, and optional resilience
// (retry, circuit breaker).
//
// It is the transport layer for the auth client, the remote artifact
// store, and the best-effort lookups. There is no server surface.
//
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL: "https://api.example.com",
//	    Auth:    httpclient.BearerAuth("my-token"),
//	})
//
//	resp, err := client.Do(ctx, httpclient.Request{
//	    Method: http.MethodGet,
//	    Path:   "/sessions",
//	})
package httpclient
