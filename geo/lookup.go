package geo

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// CountyBounds is a county's axis-aligned geographic bounding box.
type CountyBounds struct {
	Southwest [2]float64 `json:"southwest"`
	Northeast [2]float64 `json:"northeast"`
	Center    [2]float64 `json:"center"`
}

// CountyArea holds land and water areas in square meters.
type CountyArea struct {
	Land  float64 `json:"land"`
	Water float64 `json:"water"`
}

// CountyRecord is the derived per-county summary used by the game for
// tray cards, hints, and snap targets.
type CountyRecord struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	FullName string       `json:"fullName"`
	Centroid [2]float64   `json:"centroid"`
	Area     CountyArea   `json:"area"`
	Bounds   CountyBounds `json:"bounds"`
}

// CountyLookup is the lookup document served alongside the geometry.
type CountyLookup struct {
	Counties      []CountyRecord `json:"counties"`
	TotalCounties int            `json:"totalCounties"`
	GeneratedAt   string         `json:"generatedAt"`
}

// ParseCountyLookup decodes a county-lookup.json document.
func ParseCountyLookup(data []byte) (*CountyLookup, error) {
	var lookup CountyLookup
	if err := json.Unmarshal(data, &lookup); err != nil {
		return nil, fmt.Errorf("parsing county lookup: %w", err)
	}
	return &lookup, nil
}

// FindByID returns the record for a county identifier, or nil.
func (cl *CountyLookup) FindByID(id string) *CountyRecord {
	for i := range cl.Counties {
		if cl.Counties[i].ID == id {
			return &cl.Counties[i]
		}
	}
	return nil
}

// BuildLookup derives lookup records from a feature collection. Centroids
// are geographic area centroids, which for any simple county shape land
// inside the bounding box.
func BuildLookup(fc *FeatureCollection) *CountyLookup {
	lookup := &CountyLookup{
		Counties:    make([]CountyRecord, 0, len(fc.Features)),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}

	for _, f := range fc.Features {
		bound, ok := GeometryBound(f.Geometry)
		if !ok {
			continue
		}
		centroid, _ := GeometryCentroid(f.Geometry)

		name := f.Name()
		fullName, _ := f.Properties["NAMELSAD"].(string)
		if fullName == "" {
			fullName = name
		}

		center := bound.Center()
		lookup.Counties = append(lookup.Counties, CountyRecord{
			ID:       f.GeoID(),
			Name:     name,
			FullName: fullName,
			Centroid: [2]float64{centroid[0], centroid[1]},
			Area: CountyArea{
				Land:  propertyNumber(f.Properties, "ALAND"),
				Water: propertyNumber(f.Properties, "AWATER"),
			},
			Bounds: CountyBounds{
				Southwest: [2]float64{bound.Min[0], bound.Min[1]},
				Northeast: [2]float64{bound.Max[0], bound.Max[1]},
				Center:    [2]float64{center[0], center[1]},
			},
		})
	}

	lookup.TotalCounties = len(lookup.Counties)
	return lookup
}

// propertyNumber reads a numeric property that JSON decoding may have left
// as float64 or that a data source may ship as an integer-valued string.
func propertyNumber(props map[string]interface{}, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}
