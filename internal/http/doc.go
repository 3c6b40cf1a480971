// Package http provides the HTTP client shared by all tile fetches of a job.
//
// The Client in this package handles:
//   - User-Agent headers
//   - Per-request timeouts
//   - Connection pooling sized to the fetch concurrency
//   - Classification of non-200 responses as *StatusError
//
// # Basic Usage
//
//	client := http.NewClient(http.WithTimeout(30*time.Second), http.WithMaxConns(100))
//	defer client.Close()
//
//	body, err := client.Get(ctx, tileURL)
//	var se *http.StatusError
//	if errors.As(err, &se) && se.StatusCode == 404 {
//	    // tile not available
//	}
package http
