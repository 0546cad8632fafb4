package pickpoint

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	pairSeparator  = ";"
	coordSeparator = ","
)

// Point is a location in fractional image coordinates. Both axes are
// normally within [0,1] but values are not clamped here.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Set is an ordered sequence of points, kept in insertion order
type Set []Point

// Decode parses "x1,y1;x2,y2;..." into a Set.
// Pairs that are not exactly two finite numbers are dropped.
func Decode(text string) Set {
	text = strings.TrimSpace(text)
	if text == "" {
		return Set{}
	}

	segments := strings.Split(text, pairSeparator)
	points := make(Set, 0, len(segments))
	for _, segment := range segments {
		if p, ok := parsePair(segment); ok {
			points = append(points, p)
		}
	}
	return points
}

func parsePair(segment string) (Point, bool) {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return Point{}, false
	}

	parts := strings.Split(segment, coordSeparator)
	if len(parts) != 2 {
		return Point{}, false
	}

	x, ok := parseCoord(parts[0])
	if !ok {
		return Point{}, false
	}
	y, ok := parseCoord(parts[1])
	if !ok {
		return Point{}, false
	}
	return Point{X: x, Y: y}, true
}

func parseCoord(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Encode formats points with two decimals, e.g. "0.50,0.25;0.10,0.90".
func Encode(points Set) string {
	if len(points) == 0 {
		return ""
	}

	pairs := make([]string, 0, len(points))
	for _, p := range points {
		pairs = append(pairs, fmt.Sprintf("%.2f%s%.2f", p.X, coordSeparator, p.Y))
	}
	return strings.Join(pairs, pairSeparator)
}

// Append adds a point to an encoded set and returns the re-encoded text.
func Append(existing string, p Point) string {
	points := Decode(existing)
	points = append(points, p)
	return Encode(points)
}

// Clear returns the encoding of an empty set.
func Clear() string {
	return ""
}
