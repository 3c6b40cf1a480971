package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// ParseBound parses "minLon,minLat,maxLon,maxLat" in degrees. Whitespace
// around values is ignored and a corner pair given in the wrong order is
// accepted; the returned bound is normalised so Min <= Max.
func ParseBound(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bounding box %q: want minLon,minLat,maxLon,maxLat", s)
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bounding box %q: %w", s, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return orb.Bound{}, fmt.Errorf("bounding box %q: value %d is not finite", s, i+1)
		}
		v[i] = f
	}

	for _, lon := range []float64{v[0], v[2]} {
		if lon < -180 || lon > 180 {
			return orb.Bound{}, fmt.Errorf("bounding box %q: longitude %g out of range", s, lon)
		}
	}
	for _, lat := range []float64{v[1], v[3]} {
		if lat < -90 || lat > 90 {
			return orb.Bound{}, fmt.Errorf("bounding box %q: latitude %g out of range", s, lat)
		}
	}

	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[0], v[1]}}.Extend(orb.Point{v[2], v[3]}), nil
}
