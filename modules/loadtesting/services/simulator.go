package services

import (
	"context"
	"math"
	"time"

	"github.com/labx-platform/testbed/modules/loadtesting/domain/entities/loadtest"
)

var simulatedErrors = []string{loadtest.ErrTimeout, loadtest.ErrConnection, loadtest.ErrServer}

// Simulate produces results for load without any network traffic. Each VU
// issues one request per think time; latency and failure probability grow
// with the number of VUs. draw must return values in [0, 1).
func Simulate(ctx context.Context, load loadtest.Load, draw func() float64) (loadtest.Results, error) {
	if err := load.CheckSimulated(); err != nil {
		return loadtest.Results{}, err
	}
	total := load.SimulatedRequests()
	agg := loadtest.NewAggregator()
	metrics := loadtest.SystemMetrics{CPU: []float64{}, Memory: []float64{}, Disk: []float64{}, Network: []float64{}}

	loadFactor := math.Min(float64(load.VirtualUsers)/100, 2)
	failure := math.Min(float64(load.VirtualUsers)/1000, 0.1)
	for i := int64(0); i < total; i++ {
		if i%1000 == 0 && ctx.Err() != nil {
			return loadtest.Results{}, ctx.Err()
		}
		s := loadtest.Sample{LatencyMs: (100 + draw()*200) * loadFactor}
		if draw() < failure {
			s.ErrorType = simulatedErrors[min(int(draw()*3), len(simulatedErrors)-1)]
		}
		agg.Add(s)

		if i%100 == 0 {
			metrics.CPU = append(metrics.CPU, loadtest.Round2(30+draw()*40))
			metrics.Memory = append(metrics.Memory, loadtest.Round2(40+draw()*30))
			metrics.Disk = append(metrics.Disk, loadtest.Round2(20+draw()*20))
			metrics.Network = append(metrics.Network, loadtest.Round2(10+draw()*30))
		}
	}
	return agg.Results(time.Duration(load.DurationSeconds)*time.Second, metrics), nil
}
