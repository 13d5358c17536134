package forecast

import "encoding/json"

// Coordinate is a validated latitude/longitude pair.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Location is the human-readable place NWS associates with a gridpoint.
type Location struct {
	City  string `json:"city"`
	State string `json:"state"`
}

// Report is the /api/forecast success body. Location is null when the gridpoint
// metadata has no relativeLocation. Forecast is the upstream document, unmodified.
type Report struct {
	Location *Location       `json:"location"`
	Forecast json.RawMessage `json:"forecast"`
}

// pointsDocument is the /points response, walked loosely: a value of the wrong shape at
// any level counts as absent rather than failing the lookup.
type pointsDocument struct {
	properties map[string]any
}

// parsePoints decodes a /points body. Only invalid JSON is an error.
func parsePoints(body []byte) (pointsDocument, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return pointsDocument{}, err
	}
	top, _ := raw.(map[string]any)
	props, _ := top["properties"].(map[string]any)
	return pointsDocument{properties: props}, nil
}

// forecastURL returns properties.forecast when it is a string, else "".
func (d pointsDocument) forecastURL() string {
	s, _ := d.properties["forecast"].(string)
	return s
}

// location returns properties.relativeLocation.properties, or nil unless both levels are
// objects. Non-string city or state become "".
func (d pointsDocument) location() *Location {
	rel, _ := d.properties["relativeLocation"].(map[string]any)
	props, ok := rel["properties"].(map[string]any)
	if !ok {
		return nil
	}
	city, _ := props["city"].(string)
	state, _ := props["state"].(string)
	return &Location{City: city, State: state}
}
