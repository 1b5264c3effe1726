package features

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Request is the typed prediction payload. Every section is optional and
// missing values are filled by the Engineer.
type Request struct {
	TrainID         ID                 `json:"train_id"`
	StationID       ID                 `json:"station_id"`
	ScheduledTime   *ClockTime         `json:"scheduled_time,omitempty"`
	TimeFeatures    *TimeInput         `json:"time_features,omitempty"`
	WeatherData     *WeatherInput      `json:"weather_data,omitempty"`
	CurrentLocation *LocationInput     `json:"current_location,omitempty"`
	StationLocation *LocationInput     `json:"station_location,omitempty"`
	HistoricalData  []HistoricalRecord `json:"historical_data,omitempty"`
	RecentTracking  []TrackingSample   `json:"recent_tracking,omitempty"`
}

// TimeInput carries caller supplied calendar features.
type TimeInput struct {
	Hour       *Number `json:"hour,omitempty"`
	DayOfWeek  *Number `json:"day_of_week,omitempty"`
	IsWeekend  *Number `json:"is_weekend,omitempty"`
	IsPeakHour *Number `json:"is_peak_hour,omitempty"`
}

// WeatherInput carries weather readings at the train position.
type WeatherInput struct {
	Temperature *Number `json:"temperature,omitempty"`
	Humidity    *Number `json:"humidity,omitempty"`
	Rainfall    *Number `json:"rainfall,omitempty"`
}

// LocationInput is a coordinate with an optional speed in km/h.
type LocationInput struct {
	Latitude  *Number `json:"latitude,omitempty"`
	Longitude *Number `json:"longitude,omitempty"`
	Speed     *Number `json:"speed,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l *LocationInput) HasCoordinates() bool {
	return l != nil && l.Latitude != nil && l.Longitude != nil
}

// HistoricalRecord pairs an earlier prediction with the observed arrival.
type HistoricalRecord struct {
	PredictedTime     string `json:"predicted_time"`
	ActualArrivalTime string `json:"actual_arrival_time"`
}

// TrackingSample is one recent telemetry point.
type TrackingSample struct {
	Speed     *Number `json:"speed,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// ParseRequest decodes a JSON payload into a Request. An explicit
// "scheduled_time": null is kept as a non-string ClockTime, which converts to
// zero minutes, while an absent field stays nil.
func ParseRequest(b []byte) (Request, error) {
	var r Request
	if len(bytes.TrimSpace(b)) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	if r.ScheduledTime == nil && hasKey(b, "scheduled_time") {
		r.ScheduledTime = &ClockTime{}
	}
	return r, nil
}

// hasKey reports whether the top level JSON object b holds key, whatever its
// value.
func hasKey(b []byte, key string) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return false
	}
	_, ok := fields[key]
	return ok
}

// ID is a train or station identifier given either as a JSON string or number.
type ID string

// UnmarshalJSON accepts strings and numbers. null leaves the ID empty.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("identifier must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier text.
func (id ID) String() string { return string(id) }

// Empty reports whether the identifier was omitted.
func (id ID) Empty() bool { return id == "" }

// Number is a numeric field that also accepts booleans and numeric strings,
// matching how telemetry producers encode flags and readings.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("true")):
		*n = 1
		return nil
	case bytes.Equal(b, []byte("false")):
		*n = 0
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			*n = 1
			return nil
		case "false":
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Float returns the value as float64.
func (n Number) Float() float64 { return float64(n) }

// ClockTime is a scheduled HH:MM:SS time. Non-string JSON values decode
// without error and convert to zero minutes.
type ClockTime struct {
	Value    string
	IsString bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ClockTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*c = ClockTime{Value: string(b)}
		return nil
	}
	*c = ClockTime{Value: s, IsString: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c ClockTime) MarshalJSON() ([]byte, error) {
	if !c.IsString {
		if c.Value == "" {
			return []byte("null"), nil
		}
		return []byte(c.Value), nil
	}
	return json.Marshal(c.Value)
}

// Clock builds a ClockTime from a string.
func Clock(s string) *ClockTime { return &ClockTime{Value: s, IsString: true} }

// Num returns a pointer to a Number, for building requests in code.
func Num(f float64) *Number {
	n := Number(f)
	return &n
}
