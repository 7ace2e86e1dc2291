package models

// Observation is one calendar day of monitoring at the site. Date is the
// primary key across the store; ID only identifies a record for edit/delete.
type Observation struct {
	ID            string   `json:"id"`
	Date          string   `json:"date"` // ISO YYYY-MM-DD
	Bats          int      `json:"bats"`
	FigsDropped   int      `json:"figsDropped"`
	LeavesDropped int      `json:"leavesDropped"`
	Temp          *float64 `json:"temp,omitempty"`     // daily max, supplied by analysis
	Rainfall      *float64 `json:"rainfall,omitempty"` // mm, supplied by analysis
}

// Location is the site context sent with each analysis request. Exactly one
// representation is populated: suburb/state/postcode when IsManual, lat/lon
// otherwise.
type Location struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Suburb    string   `json:"suburb,omitempty"`
	State     string   `json:"state,omitempty"`
	Postcode  string   `json:"postcode,omitempty"`
	IsManual  bool     `json:"isManual"`
}

type Influencer struct {
	Label       string `json:"label"`
	Impact      string `json:"impact"` // "positive", "negative", "neutral"
	Description string `json:"description"`
}

// FruitingPrediction is the derived forecast, wholly replaced by each
// successful analysis cycle.
type FruitingPrediction struct {
	Window      string       `json:"window"`
	Confidence  int          `json:"confidence"` // 0-100
	Reasoning   string       `json:"reasoning"`
	Influencers []Influencer `json:"influencers"`
}

// CorrelationHighlight is a transient date-range annotation for rendering;
// regenerated each analysis cycle and never persisted.
type CorrelationHighlight struct {
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Type        string `json:"type"` // "positive" or "negative"
	Description string `json:"description"`
}

// WeatherEntry is one row of the analysis response's weather matrix,
// matched back to observations by exact date string.
type WeatherEntry struct {
	Date     string  `json:"date"`
	Temp     float64 `json:"temp"`
	Rainfall float64 `json:"rainfall"`
}
