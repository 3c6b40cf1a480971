package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	nethttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handiism/tile-mosaic/internal/http"
	"github.com/handiism/tile-mosaic/internal/tile"
)

func solidPNG(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, tile.Size, tile.Size))
	for y := 0; y < tile.Size; y++ {
		for x := 0; x < tile.Size; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestExpandTemplate(t *testing.T) {
	c := tile.Coordinate{Zoom: 16, Col: 47571, Row: 29489}

	assert.Equal(t, "https://tiles.example.com/16/47571/29489.png",
		ExpandTemplate("https://tiles.example.com/{z}/{x}/{y}.png", c))
	assert.Equal(t, "https://mt1.example.com/vt/lyrs=s&x=47571&y=29489&z=16",
		ExpandTemplate("https://mt1.example.com/vt/lyrs=s&x={x}&y={y}&z={z}", c))
}

func TestValidateTemplate(t *testing.T) {
	assert.NoError(t, ValidateTemplate("http://h/{z}/{x}/{y}"))
	err := ValidateTemplate("http://h/{z}/{x}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{y}")

	_, err = NewFetcher("http://h/static.png", nil, RetryPolicy{})
	assert.Error(t, err)
}

func TestFetcher_Fetch(t *testing.T) {
	body := solidPNG(t, color.NRGBA{R: 12, G: 34, B: 56, A: 255})
	var gotPath string
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer srv.Close()

	f, err := NewFetcher(srv.URL+"/{z}/{x}/{y}.png", http.NewClient(), RetryPolicy{})
	require.NoError(t, err)

	buf, err := f.Fetch(context.Background(), tile.Coordinate{Zoom: 3, Col: 5, Row: 2})
	require.NoError(t, err)
	assert.Equal(t, "/3/5/2.png", gotPath)

	r, g, b := buf.At(200, 17)
	assert.Equal(t, [3]uint8{12, 34, 56}, [3]uint8{r, g, b})
}

func TestFetcher_FetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler nethttp.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "not found",
			handler: func(w nethttp.ResponseWriter, r *nethttp.Request) {
				nethttp.NotFound(w, r)
			},
			check: func(t *testing.T, err error) {
				var se *http.StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, nethttp.StatusNotFound, se.StatusCode)
			},
		},
		{
			name: "undecodable body",
			handler: func(w nethttp.ResponseWriter, r *nethttp.Request) {
				w.Write([]byte("not an image"))
			},
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "decode tile image")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			f, err := NewFetcher(srv.URL+"/{z}/{x}/{y}", http.NewClient(), RetryPolicy{})
			require.NoError(t, err)

			c := tile.Coordinate{Zoom: 16, Col: 5, Row: 5}
			buf, err := f.Fetch(context.Background(), c)
			assert.Nil(t, buf)

			var fe *FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, c, fe.Tile)
			assert.True(t, IsFetchError(err))
			assert.Contains(t, err.Error(), "z=16 x=5 y=5")
			tt.check(t, err)
		})
	}
}

func TestFetcher_TimeoutIsFetchError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f, err := NewFetcher(srv.URL+"/{z}/{x}/{y}", http.NewClient(http.WithTimeout(50*time.Millisecond)), RetryPolicy{})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), tile.Coordinate{Zoom: 1})
	assert.True(t, IsFetchError(err))
}

type flakyGetter struct {
	failures int32
	calls    atomic.Int32
	body     []byte
}

func (g *flakyGetter) Get(ctx context.Context, url string) ([]byte, error) {
	if g.calls.Add(1) <= g.failures {
		return nil, fmt.Errorf("connection reset")
	}
	return g.body, nil
}

func TestFetcher_Retry(t *testing.T) {
	g := &flakyGetter{failures: 2, body: solidPNG(t, color.NRGBA{R: 1, G: 2, B: 3, A: 255})}

	f, err := NewFetcher("http://h/{z}/{x}/{y}", g, RetryPolicy{MaxRetries: 2, Cooldown: time.Millisecond, Exponent: 2})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), tile.Coordinate{Zoom: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 3, g.calls.Load())
}

func TestFetcher_NoRetryByDefault(t *testing.T) {
	g := &flakyGetter{failures: 1}

	f, err := NewFetcher("http://h/{z}/{x}/{y}", g, RetryPolicy{})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), tile.Coordinate{Zoom: 1})
	assert.True(t, IsFetchError(err))
	assert.EqualValues(t, 1, g.calls.Load())
}

func TestFetcher_RetryStopsOnCancel(t *testing.T) {
	g := &flakyGetter{failures: 100}

	f, err := NewFetcher("http://h/{z}/{x}/{y}", g, RetryPolicy{MaxRetries: 5, Cooldown: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = f.Fetch(ctx, tile.Coordinate{Zoom: 1})
	assert.True(t, IsFetchError(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.EqualValues(t, 1, g.calls.Load())
}
