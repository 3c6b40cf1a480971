package fetch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/handiism/tile-mosaic/internal/http"
	ioutils "github.com/handiism/tile-mosaic/internal/io"
	"github.com/handiism/tile-mosaic/internal/tile"
)

// Placeholders substituted into a tile URL template.
const (
	PlaceholderZoom = "{z}"
	PlaceholderCol  = "{x}"
	PlaceholderRow  = "{y}"
)

// FetchError reports a tile that could not be retrieved or decoded.
type FetchError struct {
	Tile tile.Coordinate
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch tile z=%d x=%d y=%d: %v", e.Tile.Zoom, e.Tile.Col, e.Tile.Row, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Getter performs a single GET and returns the body.
// *http.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// RetryPolicy controls repeated attempts for a failed tile. The zero value
// makes exactly one attempt.
type RetryPolicy struct {
	// MaxRetries is the number of extra attempts after the first.
	MaxRetries int
	// Cooldown is the wait before the first retry.
	Cooldown time.Duration
	// Exponent multiplies the cooldown for every further retry.
	Exponent float64
}

// Fetcher retrieves and decodes single tiles.
type Fetcher struct {
	template string
	client   Getter
	images   *ioutils.ImageService
	retry    RetryPolicy
}

// NewFetcher creates a Fetcher for the given URL template. The template must
// contain the {z}, {x} and {y} placeholders.
func NewFetcher(template string, client Getter, retry RetryPolicy) (*Fetcher, error) {
	if err := ValidateTemplate(template); err != nil {
		return nil, err
	}
	if client == nil {
		client = http.NewClient()
	}
	return &Fetcher{
		template: template,
		client:   client,
		images:   ioutils.NewImageService(),
		retry:    retry,
	}, nil
}

// ValidateTemplate checks that template addresses tiles by zoom, column and row.
func ValidateTemplate(template string) error {
	var missing []string
	for _, p := range []string{PlaceholderZoom, PlaceholderCol, PlaceholderRow} {
		if !strings.Contains(template, p) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("tile URL template %q is missing %s", template, strings.Join(missing, ", "))
	}
	return nil
}

// URL expands the template for c.
func (f *Fetcher) URL(c tile.Coordinate) string {
	return ExpandTemplate(f.template, c)
}

// ExpandTemplate substitutes c into template.
func ExpandTemplate(template string, c tile.Coordinate) string {
	r := strings.NewReplacer(
		PlaceholderZoom, strconv.Itoa(c.Zoom),
		PlaceholderCol, strconv.Itoa(c.Col),
		PlaceholderRow, strconv.Itoa(c.Row),
	)
	return r.Replace(template)
}

// Fetch downloads and decodes the tile at c. Every failure, including a
// timeout or cancellation, is returned as a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, c tile.Coordinate) (*tile.PixelBuffer, error) {
	url := f.URL(c)

	var err error
	for try := 0; try <= f.retry.MaxRetries; try++ {
		if try > 0 {
			if werr := f.waitForRetry(ctx, try-1); werr != nil {
				err = werr
				break
			}
		}

		var buf *tile.PixelBuffer
		buf, err = f.fetchOnce(ctx, url)
		if err == nil {
			return buf, nil
		}
		if ctx.Err() != nil {
			break
		}
	}

	return nil, &FetchError{Tile: c, URL: url, Err: err}
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (*tile.PixelBuffer, error) {
	body, err := f.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return f.images.DecodeTile(body)
}

func (f *Fetcher) waitForRetry(ctx context.Context, tries int) error {
	exp := f.retry.Exponent
	if exp <= 0 {
		exp = 1
	}
	cooldown := time.Duration(float64(f.retry.Cooldown) * math.Pow(exp, float64(tries)))
	if cooldown <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(cooldown)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsFetchError reports whether err is a per-tile failure.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
