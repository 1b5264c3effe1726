package features

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kilianp07/smartrail/core/geo"
	"github.com/kilianp07/smartrail/core/logger"
	"github.com/kilianp07/smartrail/core/metrics"
)

// Fill values used when a request omits a field.
const (
	DefaultTemperature     = 28.0
	DefaultHumidity        = 75.0
	DefaultRainfall        = 0.0
	DefaultSpeed           = 45.0
	DefaultDistanceKm      = 10.0
	DefaultHistoricalDelay = 5.0
	DefaultScheduledTime   = "12:00:00"
)

// TrainType is the service category of a train.
type TrainType string

const (
	Express   TrainType = "express"
	Intercity TrainType = "intercity"
	Local     TrainType = "local"
)

// ParseTrainType normalises a stored train type string.
func ParseTrainType(s string) TrainType {
	switch TrainType(strings.ToLower(strings.TrimSpace(s))) {
	case Express:
		return Express
	case Intercity:
		return Intercity
	default:
		return Local
	}
}

// ClassifyByPrefix applies the identifier prefix rule used when no train
// directory knows the train.
func ClassifyByPrefix(trainID string) TrainType {
	switch {
	case strings.HasPrefix(trainID, "10"):
		return Express
	case strings.HasPrefix(trainID, "80"):
		return Intercity
	default:
		return Local
	}
}

// Directory resolves reference data for trains and stations.
type Directory interface {
	StationLocation(stationID string) (geo.Point, bool)
	TrainType(trainID string) (TrainType, bool)
}

// Engineer extracts feature vectors from requests.
type Engineer struct {
	now      func() time.Time
	dir      Directory
	log      logger.Logger
	recorder metrics.ExtractionRecorder
	degraded atomic.Uint64
}

// Option configures an Engineer.
type Option func(*Engineer)

// WithClock overrides the wall clock used for time defaults.
func WithClock(now func() time.Time) Option {
	return func(e *Engineer) { e.now = now }
}

// WithDirectory enables train type and station coordinate lookups.
func WithDirectory(d Directory) Option {
	return func(e *Engineer) { e.dir = d }
}

// WithLogger sets the logger used for degraded extractions.
func WithLogger(l logger.Logger) Option {
	return func(e *Engineer) { e.log = l }
}

// WithRecorder reports degraded extractions to a metrics sink.
func WithRecorder(r metrics.ExtractionRecorder) Option {
	return func(e *Engineer) { e.recorder = r }
}

// NewEngineer returns an Engineer using the wall clock and the prefix rule.
func NewEngineer(opts ...Option) *Engineer {
	e := &Engineer{now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Degraded returns how many extractions fell back to the default vector.
func (e *Engineer) Degraded() uint64 { return e.degraded.Load() }

// Defaults is the vector produced for an empty request at the current time.
func (e *Engineer) Defaults() Vector {
	return e.Extract(Request{})
}

// ExtractJSON decodes a raw payload and extracts its features. Payloads that
// cannot be decoded yield Defaults; the fallback is logged and counted.
func (e *Engineer) ExtractJSON(b []byte) Vector {
	req, err := ParseRequest(b)
	if err != nil {
		e.markDegraded(err)
		return e.Defaults()
	}
	return e.Extract(req)
}

func (e *Engineer) markDegraded(err error) {
	e.degraded.Add(1)
	if e.log != nil {
		e.log.Warnf("feature extraction degraded to defaults: %v", err)
	}
	if e.recorder != nil {
		if rerr := e.recorder.RecordDegradedExtraction(metrics.ExtractionEvent{Reason: err.Error(), Time: e.now()}); rerr != nil && e.log != nil {
			e.log.Errorf("record degraded extraction: %v", rerr)
		}
	}
}

// Extract fills a Vector from a typed request.
func (e *Engineer) Extract(r Request) Vector {
	var v Vector
	now := e.now()

	hour := float64(now.Hour())
	dow := float64(mondayFirst(now.Weekday()))
	var weekend, peak *Number
	if tf := r.TimeFeatures; tf != nil {
		if tf.Hour != nil {
			hour = tf.Hour.Float()
		}
		if tf.DayOfWeek != nil {
			dow = tf.DayOfWeek.Float()
		}
		weekend, peak = tf.IsWeekend, tf.IsPeakHour
	}
	v[Hour] = hour
	v[DayOfWeek] = dow
	// Absent flags are derived from hour and day rather than left at 0, so a
	// request without time_features still sees rush hour and weekends.
	if weekend != nil {
		v[IsWeekend] = flag(weekend.Float() != 0)
	} else {
		v[IsWeekend] = flag(dow >= 5)
	}
	if peak != nil {
		v[IsPeakHour] = flag(peak.Float() != 0)
	} else {
		v[IsPeakHour] = flag(IsPeak(hour))
	}

	v[WeatherTemp] = DefaultTemperature
	v[WeatherHumidity] = DefaultHumidity
	v[WeatherRainfall] = DefaultRainfall
	if w := r.WeatherData; w != nil {
		v[WeatherTemp] = valueOr(w.Temperature, DefaultTemperature)
		v[WeatherHumidity] = valueOr(w.Humidity, DefaultHumidity)
		v[WeatherRainfall] = valueOr(w.Rainfall, DefaultRainfall)
	}

	v[CurrentSpeed] = DefaultSpeed
	if r.CurrentLocation != nil {
		v[CurrentSpeed] = valueOr(r.CurrentLocation.Speed, DefaultSpeed)
	}
	v[DistanceToStation] = e.distance(r)

	sched := DefaultScheduledTime
	if r.ScheduledTime != nil {
		if !r.ScheduledTime.IsString {
			sched = ""
		} else {
			sched = r.ScheduledTime.Value
		}
	}
	v[ScheduledTimeMinutes] = float64(MinutesSinceMidnight(sched))

	tt := e.trainType(r.TrainID.String())
	v[TrainTypeExpress] = flag(tt == Express)
	v[TrainTypeIntercity] = flag(tt == Intercity)

	v[HistoricalAvgDelay] = HistoricalDelay(r.HistoricalData)
	return v
}

func (e *Engineer) trainType(id string) TrainType {
	if id == "" {
		return Local
	}
	if e.dir != nil {
		if tt, ok := e.dir.TrainType(id); ok {
			return tt
		}
	}
	return ClassifyByPrefix(id)
}

func (e *Engineer) distance(r Request) float64 {
	loc := r.CurrentLocation
	if !loc.HasCoordinates() {
		return DefaultDistanceKm
	}
	from := geo.Point{Lat: loc.Latitude.Float(), Lon: loc.Longitude.Float()}
	if !from.Valid() {
		return DefaultDistanceKm
	}
	var to geo.Point
	switch {
	case r.StationLocation.HasCoordinates():
		to = geo.Point{Lat: r.StationLocation.Latitude.Float(), Lon: r.StationLocation.Longitude.Float()}
	case e.dir != nil && !r.StationID.Empty():
		p, ok := e.dir.StationLocation(r.StationID.String())
		if !ok {
			return DefaultDistanceKm
		}
		to = p
	default:
		return DefaultDistanceKm
	}
	if !to.Valid() {
		return DefaultDistanceKm
	}
	return geo.Distance(from, to)
}

var peakHours = map[int]struct{}{7: {}, 8: {}, 9: {}, 17: {}, 18: {}, 19: {}}

// IsPeak reports whether hour is one of the rush hours 7-9 and 17-19.
func IsPeak(hour float64) bool {
	if hour != math.Trunc(hour) {
		return false
	}
	_, ok := peakHours[int(hour)]
	return ok
}

// MinutesSinceMidnight converts an HH:MM:SS string to whole minutes.
// Malformed input yields 0.
func MinutesSinceMidnight(s string) int {
	t, err := time.Parse(time.TimeOnly, strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return t.Hour()*60 + t.Minute()
}

// HistoricalDelay averages actual minus predicted arrival in minutes over the
// records where both times parse. It returns DefaultHistoricalDelay when no
// record is usable.
func HistoricalDelay(records []HistoricalRecord) float64 {
	var sum float64
	var n int
	for _, rec := range records {
		d, err := delayMinutes(rec.PredictedTime, rec.ActualArrivalTime)
		if err != nil {
			continue
		}
		sum += d
		n++
	}
	if n == 0 {
		return DefaultHistoricalDelay
	}
	return sum / float64(n)
}

func delayMinutes(predicted, actual string) (float64, error) {
	p, pClock, err := parseInstant(predicted)
	if err != nil {
		return 0, err
	}
	a, aClock, err := parseInstant(actual)
	if err != nil {
		return 0, err
	}
	if pClock != aClock {
		return 0, fmt.Errorf("mixed time formats %q and %q", predicted, actual)
	}
	return a.Sub(p).Minutes(), nil
}

// parseInstant accepts RFC 3339 timestamps or HH:MM:SS clock times. The
// boolean is true for clock times.
func parseInstant(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.TimeOnly, s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, false, nil
}

// mondayFirst maps time.Weekday to Monday=0 ... Sunday=6.
func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func valueOr(n *Number, def float64) float64 {
	if n == nil {
		return def
	}
	return n.Float()
}
