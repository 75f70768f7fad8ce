package geo

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
)

// squareFeature builds a closed square polygon feature in geographic
// coordinates with the standard county property bag.
func squareFeature(geoid, name string, minLon, minLat, size float64) *Feature {
	ring := []orb.Point{
		{minLon, minLat},
		{minLon + size, minLat},
		{minLon + size, minLat + size},
		{minLon, minLat + size},
		{minLon, minLat},
	}
	return &Feature{
		Type:     "Feature",
		Geometry: RingsToPolygon([][]orb.Point{ring}),
		Properties: map[string]interface{}{
			"GEOID":    geoid,
			"NAME":     name,
			"NAMELSAD": name + " County",
			"ALAND":    float64(size * size * 1e10),
			"AWATER":   float64(0),
			"INTPTLAT": fmt.Sprintf("%+f", minLat+size/2),
			"INTPTLON": fmt.Sprintf("%+f", minLon+size/2),
		},
	}
}

// testCollection builds a three-county collection of adjacent squares
// inside the California bounds.
func testCollection() *FeatureCollection {
	fc := NewFeatureCollection()
	fc.AddFeature(squareFeature("06001", "Alpha", -122, 37, 1))
	fc.AddFeature(squareFeature("06002", "Beta", -121, 37, 1))
	fc.AddFeature(squareFeature("06003", "Gamma", -122, 38, 1))
	return fc
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
