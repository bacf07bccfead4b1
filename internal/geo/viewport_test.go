package geo

import (
	"testing"

	"github.com/twpayne/go-geom"
)

func TestNormalize_ClampsAndRounds(t *testing.T) {
	vp := Normalize(Viewport{
		TopLeft:     geom.Coord{-512.339, 123.4},
		BottomRight: geom.Coord{512.001, -99.999},
		Zoom:        0,
	})

	if vp.TopLeft.X() != -180 || vp.TopLeft.Y() != 90 {
		t.Errorf("topLeft = %v, want clamped to world bound", vp.TopLeft)
	}
	if vp.BottomRight.X() != 180 || vp.BottomRight.Y() != -90 {
		t.Errorf("bottomRight = %v, want clamped to world bound", vp.BottomRight)
	}
	if vp.Zoom != 1 {
		t.Errorf("zoom = %d, want forced to 1", vp.Zoom)
	}

	rounded := Normalize(Viewport{
		TopLeft:     geom.Coord{-122.419416, 37.774929},
		BottomRight: geom.Coord{-122.351, 37.701},
		Zoom:        8,
	})
	if rounded.TopLeft.X() != -122.42 || rounded.TopLeft.Y() != 37.77 {
		t.Errorf("topLeft = %v, want rounded to two decimals", rounded.TopLeft)
	}
}

func TestExceeds_SensitivityGate(t *testing.T) {
	base := Viewport{
		TopLeft:     geom.Coord{-10, 10},
		BottomRight: geom.Coord{10, -10},
		Zoom:        5,
	}

	tests := []struct {
		name string
		cur  Viewport
		want bool
	}{
		{
			name: "identical viewport",
			cur:  base,
			want: false,
		},
		{
			name: "small pan below thresholds",
			cur: Viewport{
				TopLeft:     geom.Coord{0, 15},
				BottomRight: geom.Coord{20, -5},
				Zoom:        5,
			},
			want: false,
		},
		{
			name: "zoom change of two is within tolerance",
			cur: Viewport{
				TopLeft:     base.TopLeft,
				BottomRight: base.BottomRight,
				Zoom:        7,
			},
			want: false,
		},
		{
			name: "zoom change of three",
			cur: Viewport{
				TopLeft:     base.TopLeft,
				BottomRight: base.BottomRight,
				Zoom:        8,
			},
			want: true,
		},
		{
			name: "longitude pan beyond sixty degrees",
			cur: Viewport{
				TopLeft:     geom.Coord{51, 10},
				BottomRight: geom.Coord{71, -10},
				Zoom:        5,
			},
			want: true,
		},
		{
			name: "latitude pan beyond thirty degrees",
			cur: Viewport{
				TopLeft:     geom.Coord{-10, 41},
				BottomRight: geom.Coord{10, 21},
				Zoom:        5,
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Exceeds(base, tt.cur); got != tt.want {
				t.Errorf("Exceeds = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParsePoint(t *testing.T) {
	point, ok := ParsePoint("37.77, -122.41")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if point.X() != -122.41 || point.Y() != 37.77 {
		t.Errorf("point = %v, want lon/lat order", point)
	}

	for _, bad := range []string{"", "37.77", "a,b", "1,2,3"} {
		if _, ok := ParsePoint(bad); ok {
			t.Errorf("ParsePoint(%q) should fail", bad)
		}
	}
}
