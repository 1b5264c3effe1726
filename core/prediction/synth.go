package prediction

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kilianp07/smartrail/core/features"
)

// MaxSyntheticDelay bounds synthetic delay targets in minutes.
const MaxSyntheticDelay = 60.0

// Synthesize generates n feature rows and delay targets from a fixed
// generator: peak hours, rainfall and distance add delay, non-express trains
// pay a penalty and every row gets Gaussian noise. Targets are clipped to
// [0, MaxSyntheticDelay]. The same n and seed always give the same data.
func Synthesize(n int, seed uint64) ([][]float64, []float64) {
	if n <= 0 {
		return nil, nil
	}
	src := rand.NewPCG(seed, seed)
	rng := rand.New(src)
	normal := func(mu, sigma float64) distuv.Normal { return distuv.Normal{Mu: mu, Sigma: sigma, Src: src} }

	temp := normal(28, 5)
	humidity := normal(75, 15)
	rain := distuv.Exponential{Rate: 0.5, Src: src}
	dist := distuv.Uniform{Min: 0, Max: 50, Src: src}
	speed := normal(45, 15)
	hist := normal(5, 10)

	peakEffect := normal(8, 3)
	rainEffect := normal(2, 1)
	distEffect := normal(0.2, 0.1)
	localPenalty := normal(3, 2)
	noise := normal(0, 5)

	x := make([][]float64, n)
	y := make([]float64, n)
	for i := range x {
		var v features.Vector
		v[features.Hour] = float64(5 + rng.IntN(18))
		v[features.DayOfWeek] = float64(rng.IntN(7))
		v[features.IsWeekend] = float64(rng.IntN(2))
		v[features.IsPeakHour] = float64(rng.IntN(2))
		v[features.WeatherTemp] = temp.Rand()
		v[features.WeatherHumidity] = humidity.Rand()
		v[features.WeatherRainfall] = rain.Rand()
		v[features.DistanceToStation] = dist.Rand()
		v[features.CurrentSpeed] = speed.Rand()
		v[features.ScheduledTimeMinutes] = float64(rng.IntN(1440))
		v[features.TrainTypeExpress] = float64(rng.IntN(2))
		v[features.TrainTypeIntercity] = float64(rng.IntN(2))
		v[features.HistoricalAvgDelay] = hist.Rand()

		d := v[features.IsPeakHour]*peakEffect.Rand() +
			v[features.WeatherRainfall]*rainEffect.Rand() +
			v[features.DistanceToStation]*distEffect.Rand() +
			(1-v[features.TrainTypeExpress])*localPenalty.Rand() +
			noise.Rand()
		y[i] = math.Min(math.Max(d, 0), MaxSyntheticDelay)
		x[i] = v.Slice()
	}
	return x, y
}
