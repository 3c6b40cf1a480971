package download

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
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/handiism/tile-mosaic/internal/config"
	"github.com/handiism/tile-mosaic/internal/model"
	"github.com/handiism/tile-mosaic/internal/mosaic"
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

func tileColor(col, row int) color.NRGBA {
	return color.NRGBA{R: uint8(col * 20), G: uint8(row * 20), B: 200, A: 255}
}

func decodeMosaic(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := tiff.Decode(f)
	require.NoError(t, err)
	return img
}

func rgb(img image.Image, x, y int) [3]uint8 {
	r, g, b, _ := img.At(x, y).RGBA()
	return [3]uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}
}

// fakeGetter serves "{z}/{x}/{y}" URLs from memory.
type fakeGetter struct {
	t    *testing.T
	fail map[[2]int]bool
	pngs sync.Map
}

func (g *fakeGetter) Get(ctx context.Context, url string) ([]byte, error) {
	var z, x, y int
	if _, err := fmt.Sscanf(url, "mem://%d/%d/%d", &z, &x, &y); err != nil {
		return nil, err
	}
	if g.fail[[2]int{x, y}] {
		return nil, errors.New("boom")
	}
	key := [2]int{x, y}
	if b, ok := g.pngs.Load(key); ok {
		return b.([]byte), nil
	}
	b := solidPNG(g.t, tileColor(x, y))
	g.pngs.Store(key, b)
	return b, nil
}

func TestRun_FailureIsolation(t *testing.T) {
	r := tile.Range{Zoom: 16, MinCol: 4, MaxCol: 7, MinRow: 4, MaxRow: 7}
	job := &model.Job{
		URLTemplate: "mem://{z}/{x}/{y}",
		Range:       r,
		Concurrency: 4,
		OutputPath:  filepath.Join(t.TempDir(), "out", "mosaic.tif"),
	}

	var logs bytes.Buffer
	var events []ProgressEvent
	getter := &fakeGetter{t: t, fail: map[[2]int]bool{{5, 5}: true}}
	m := NewManager(config.DefaultSettings(), zerolog.New(&logs), func(e ProgressEvent) {
		events = append(events, e)
	}, WithGetter(getter))

	res, err := m.Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 9, res.Total)
	assert.Equal(t, 8, res.Succeeded)
	assert.Equal(t, []tile.Coordinate{{Zoom: 16, Col: 5, Row: 5}}, res.Failed)
	assert.Equal(t, 768, res.Width)
	assert.Equal(t, 768, res.Height)

	img := decodeMosaic(t, job.OutputPath)
	require.Equal(t, image.Rect(0, 0, 768, 768), img.Bounds())

	for _, c := range r.Coordinates() {
		x, y := r.PixelOffset(c)
		for _, p := range [][2]int{{x, y}, {x + 128, y + 128}, {x + 255, y + 255}} {
			got := rgb(img, p[0], p[1])
			if c.Col == 5 && c.Row == 5 {
				assert.Equal(t, [3]uint8{0, 0, 0}, got, "failed window %s", c)
				continue
			}
			want := tileColor(c.Col, c.Row)
			assert.Equal(t, [3]uint8{want.R, want.G, want.B}, got, "window %s", c)
		}
	}

	assert.Contains(t, logs.String(), `"level":"warn"`)
	assert.Contains(t, logs.String(), `"x":5,"y":5`)

	done, failed, total := m.GetProgress()
	assert.Equal(t, int64(9), done)
	assert.Equal(t, int64(1), failed)
	assert.Equal(t, int64(9), total)

	require.NotEmpty(t, events)
	last := 0
	for _, e := range events {
		assert.GreaterOrEqual(t, e.Done, last)
		last = e.Done
	}
	assert.Equal(t, LevelWarning, events[len(events)-1].Level)
	assert.Equal(t, 9, events[len(events)-1].Done)
}

func TestRun_ConcurrencyCap(t *testing.T) {
	const limit = 3
	body := solidPNG(t, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	var inFlight, peak int32
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		w.Write(body)
	}))
	defer srv.Close()

	job := &model.Job{
		URLTemplate: srv.URL + "/{z}/{x}/{y}.png",
		Range:       tile.Range{Zoom: 10, MinCol: 0, MaxCol: 4, MinRow: 0, MaxRow: 4},
		Concurrency: limit,
		OutputPath:  filepath.Join(t.TempDir(), "cap.tif"),
	}

	res, err := NewManager(config.DefaultSettings(), zerolog.Nop(), nil).Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 16, res.Succeeded)
	assert.Empty(t, res.Failed)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(limit))
	assert.Positive(t, atomic.LoadInt32(&peak))
}

func TestRun_SolidColorExtent(t *testing.T) {
	body := solidPNG(t, color.NRGBA{R: 34, G: 139, B: 34, A: 255})
	var requests int32
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		atomic.AddInt32(&requests, 1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer srv.Close()

	outDir := filepath.Join(t.TempDir(), "output")
	bound := orb.Bound{Min: orb.Point{81.32, 17.72}, Max: orb.Point{81.37, 17.76}}
	job, err := model.NewJob(srv.URL+"/{z}/{x}/{y}.png", bound, 16, 16, &model.PathConfig{OutputDir: outDir})
	require.NoError(t, err)

	res, err := NewManager(config.DefaultSettings(), zerolog.Nop(), nil).Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outDir, "map_47571-47580_29481-29489_16.tif"), res.Path)
	assert.Equal(t, int32(72), atomic.LoadInt32(&requests))
	assert.Equal(t, 72, res.Succeeded)
	assert.Equal(t, 9*tile.Size, res.Width)
	assert.Equal(t, 8*tile.Size, res.Height)

	img := decodeMosaic(t, res.Path)
	assert.Equal(t, res.Width, img.Bounds().Dx())
	assert.Equal(t, res.Height, img.Bounds().Dy())
	for y := 0; y < res.Height; y += 97 {
		for x := 0; x < res.Width; x += 89 {
			require.Equal(t, [3]uint8{34, 139, 34}, rgb(img, x, y), "pixel (%d,%d)", x, y)
		}
	}

	r := job.Range
	north, west := tile.RowColToLatLon(r.MinRow, r.MinCol, r.Zoom)
	south, east := tile.RowColToLatLon(r.MaxRow, r.MaxCol, r.Zoom)
	lon, lat := res.Transform.Apply(0, 0)
	assert.InDelta(t, west, lon, 1e-9)
	assert.InDelta(t, north, lat, 1e-9)
	lon, lat = res.Transform.Apply(float64(res.Width), float64(res.Height))
	assert.InDelta(t, east, lon, 1e-9)
	assert.InDelta(t, south, lat, 1e-9)
	assert.Equal(t, mosaic.ForRange(r), res.Transform)
}

func TestRun_FailureThreshold(t *testing.T) {
	srv := httptest.NewServer(nethttp.NotFoundHandler())
	defer srv.Close()

	newJob := func() *model.Job {
		return &model.Job{
			URLTemplate: srv.URL + "/{z}/{x}/{y}",
			Range:       tile.Range{Zoom: 3, MinCol: 0, MaxCol: 2, MinRow: 0, MaxRow: 2},
			Concurrency: 2,
			OutputPath:  filepath.Join(t.TempDir(), "blank.tif"),
		}
	}

	t.Run("disabled", func(t *testing.T) {
		job := newJob()
		res, err := NewManager(config.DefaultSettings(), zerolog.Nop(), nil).Run(context.Background(), job)
		require.NoError(t, err)
		assert.Len(t, res.Failed, 4)
		assert.Equal(t, 1.0, res.FailureRatio())
		assert.FileExists(t, job.OutputPath)
	})

	t.Run("exceeded", func(t *testing.T) {
		settings := config.DefaultSettings()
		settings.MaxFailureRatio = 0.5
		job := newJob()
		res, err := NewManager(settings, zerolog.Nop(), nil).Run(context.Background(), job)
		require.ErrorIs(t, err, ErrTooManyFailures)
		require.NotNil(t, res)
		assert.Len(t, res.Failed, 4)
		assert.FileExists(t, job.OutputPath)
	})
}

func TestRun_Cancellation(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		once.Do(func() { close(started) })
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	job := &model.Job{
		URLTemplate: srv.URL + "/{z}/{x}/{y}",
		Range:       tile.Range{Zoom: 5, MinCol: 0, MaxCol: 4, MinRow: 0, MaxRow: 4},
		Concurrency: 2,
		OutputPath:  filepath.Join(t.TempDir(), "cancelled.tif"),
	}

	res, err := NewManager(config.DefaultSettings(), zerolog.Nop(), nil).Run(ctx, job)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Zero(t, res.Succeeded)

	// The partially written mosaic is still a readable file.
	img := decodeMosaic(t, job.OutputPath)
	assert.Equal(t, 4*tile.Size, img.Bounds().Dx())
}

func TestRun_StructuralErrors(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	getter := &fakeGetter{t: t}
	m := NewManager(config.DefaultSettings(), zerolog.Nop(), nil, WithGetter(getter))
	r := tile.Range{Zoom: 2, MinCol: 0, MaxCol: 1, MinRow: 0, MaxRow: 1}

	t.Run("unwritable path", func(t *testing.T) {
		_, err := m.Run(context.Background(), &model.Job{
			URLTemplate: "mem://{z}/{x}/{y}",
			Range:       r,
			Concurrency: 1,
			OutputPath:  filepath.Join(blocker, "out.tif"),
		})
		var ce *mosaic.CreateError
		require.ErrorAs(t, err, &ce)
	})

	t.Run("bad template", func(t *testing.T) {
		_, err := m.Run(context.Background(), &model.Job{
			URLTemplate: "mem://static",
			Range:       r,
			Concurrency: 1,
			OutputPath:  filepath.Join(dir, "never.tif"),
		})
		require.Error(t, err)
		assert.NoFileExists(t, filepath.Join(dir, "never.tif"))
	})

	t.Run("empty range", func(t *testing.T) {
		_, err := m.Run(context.Background(), &model.Job{
			URLTemplate: "mem://{z}/{x}/{y}",
			Range:       tile.Range{Zoom: 2},
			Concurrency: 1,
			OutputPath:  filepath.Join(dir, "empty.tif"),
		})
		require.Error(t, err)
	})
}

func TestRun_RetryRecoversFlakyTile(t *testing.T) {
	body := solidPNG(t, color.NRGBA{R: 9, G: 9, B: 9, A: 255})
	var calls int32
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			nethttp.Error(w, "busy", nethttp.StatusServiceUnavailable)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	settings := config.DefaultSettings()
	settings.DownloadMaxRetries = 1
	settings.DownloadRetryCooldown = 0.001

	job := &model.Job{
		URLTemplate: srv.URL + "/{z}/{x}/{y}",
		Range:       tile.Range{Zoom: 1, MinCol: 0, MaxCol: 1, MinRow: 0, MaxRow: 1},
		Concurrency: 1,
		OutputPath:  filepath.Join(t.TempDir(), "retry.tif"),
	}
	res, err := NewManager(settings, zerolog.Nop(), nil).Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRun_UserAgent(t *testing.T) {
	body := solidPNG(t, color.NRGBA{A: 255})
	var ua atomic.Value
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		ua.Store(r.UserAgent())
		w.Write(body)
	}))
	defer srv.Close()

	settings := config.DefaultSettings()
	settings.UserAgent = "mosaic-test/1.0"
	job := &model.Job{
		URLTemplate: srv.URL + "/{z}/{x}/{y}",
		Range:       tile.Range{Zoom: 0, MinCol: 0, MaxCol: 1, MinRow: 0, MaxRow: 1},
		Concurrency: 1,
		OutputPath:  filepath.Join(t.TempDir(), "ua.tif"),
	}
	_, err := NewManager(settings, zerolog.Nop(), nil).Run(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ua.Load().(string), "mosaic-test"))
}
