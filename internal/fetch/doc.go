// Package fetch retrieves single map tiles.
//
// A Fetcher expands a URL template such as
// "https://tile.example.com/{z}/{x}/{y}.png" for one tile coordinate, issues
// one GET through a shared client and decodes the body into a
// tile.PixelBuffer. Any failure is reported as a *FetchError carrying the
// tile coordinate, so callers can treat it as "no tile" for that window:
//
//	f, _ := fetch.NewFetcher(template, client, fetch.RetryPolicy{})
//	buf, err := f.Fetch(ctx, tile.Coordinate{Zoom: 16, Col: 47571, Row: 29489})
//	if err != nil {
//	    log.Printf("skipping: %v", err)
//	}
//
// Retries are off by default. When enabled, the wait before retry n is
// Cooldown * Exponent^n.
package fetch
