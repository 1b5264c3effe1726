package dataset

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/smartrail/core/features"
	"github.com/kilianp07/smartrail/core/logger"
)

// ErrNoData is returned when the store yields no usable training rows.
var ErrNoData = errors.New("no training data")

// RequestFromRecord rebuilds the prediction payload a cleaned record stands
// for, so training rows go through the same extraction as live requests.
func RequestFromRecord(r *Record) features.Request {
	req := features.Request{
		TrainID:   features.ID(r.TrainID),
		StationID: features.ID(r.StationID),
		TimeFeatures: &features.TimeInput{
			Hour:       features.Num(float64(r.Hour)),
			DayOfWeek:  features.Num(float64(r.DayOfWeek)),
			IsWeekend:  features.Num(boolNum(r.IsWeekend)),
			IsPeakHour: features.Num(boolNum(r.IsPeakHour)),
		},
		WeatherData: &features.WeatherInput{
			Temperature: numPtr(r.WeatherTemp),
			Humidity:    numPtr(r.WeatherHumidity),
			Rainfall:    numPtr(r.WeatherRainfall),
		},
		CurrentLocation: &features.LocationInput{
			Latitude:  numPtr(r.Latitude),
			Longitude: numPtr(r.Longitude),
			Speed:     numPtr(r.Speed),
		},
	}
	if r.StationLat != nil && r.StationLon != nil {
		req.StationLocation = &features.LocationInput{
			Latitude:  numPtr(r.StationLat),
			Longitude: numPtr(r.StationLon),
		}
	}
	return req
}

// ToTrainingSet maps each record through the engineer. The target is the
// observed delay in minutes.
func ToTrainingSet(recs []Record, e *features.Engineer) (x [][]float64, y []float64) {
	x = make([][]float64, 0, len(recs))
	y = make([]float64, 0, len(recs))
	for i := range recs {
		v := e.Extract(RequestFromRecord(&recs[i]))
		x = append(x, v.Slice())
		y = append(y, recs[i].ActualDelayMinutes)
	}
	return x, y
}

// Pipeline chains loading, cleaning and feature extraction.
type Pipeline struct {
	Loader    Loader
	Processor *Processor
	Engineer  *features.Engineer
	Log       logger.Logger
}

// TrainingSet loads daysBack days of history and returns the feature matrix
// and targets. ErrNoData is returned when nothing survives cleaning.
func (p *Pipeline) TrainingSet(ctx context.Context, daysBack int) ([][]float64, []float64, error) {
	if p.Loader == nil {
		return nil, nil, fmt.Errorf("training window: %w", ErrNoData)
	}
	raw, err := p.Loader.LoadTrainingWindow(ctx, daysBack)
	if err != nil {
		return nil, nil, fmt.Errorf("load training window: %w", err)
	}
	if p.Log != nil {
		p.Log.Infof("loaded %d training records over %d days", len(raw), daysBack)
	}
	clean := p.Processor.Preprocess(raw)
	if len(clean) == 0 {
		return nil, nil, fmt.Errorf("training window of %d days: %w", daysBack, ErrNoData)
	}
	x, y := ToTrainingSet(clean, p.Engineer)
	return x, y, nil
}

func boolNum(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func numPtr(p *float64) *features.Number {
	if p == nil {
		return nil
	}
	return features.Num(*p)
}
