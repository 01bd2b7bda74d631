package metrics

import (
	"fmt"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/DataDog/sketches-go/ddsketch/store"
)

// defaultSketchAccuracy is the relative accuracy of the underlying DDSketch
// (0.01 = 1% error on reported percentiles).
const defaultSketchAccuracy = 0.01

// TimingDistribution accumulates elapsed-time samples and reports their
// distribution. Percentiles are approximated with a DDSketch.
type TimingDistribution struct {
	sketch *ddsketch.DDSketch
}

// NewTimingDistribution creates an empty timing distribution with the
// default accuracy.
func NewTimingDistribution() *TimingDistribution {
	// NewDefaultDDSketch only fails for an out-of-range accuracy.
	sketch, err := ddsketch.NewDefaultDDSketch(defaultSketchAccuracy)
	if err != nil {
		panic(fmt.Sprintf("metrics: default ddsketch: %v", err))
	}
	return &TimingDistribution{sketch: sketch}
}

// NewTimingDistributionWithAccuracy creates an empty timing distribution
// with a caller-chosen relative accuracy.
func NewTimingDistributionWithAccuracy(accuracy float64) (*TimingDistribution, error) {
	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		return nil, fmt.Errorf("create ddsketch: %w", err)
	}
	return &TimingDistribution{sketch: sketch}, nil
}

// Accumulate adds one elapsed-time sample, in nanoseconds.
// Negative durations are clamped to zero.
func (d *TimingDistribution) Accumulate(elapsed time.Duration) {
	if elapsed < 0 {
		elapsed = 0
	}
	// Add only fails for non-finite values, which a Duration cannot produce.
	_ = d.sketch.Add(float64(elapsed.Nanoseconds()))
}

// Count returns the number of accumulated samples.
func (d *TimingDistribution) Count() int64 {
	return int64(d.sketch.GetCount())
}

// Sum returns the approximate sum of accumulated samples, in nanoseconds.
func (d *TimingDistribution) Sum() float64 {
	return d.sketch.GetSum()
}

func (d *TimingDistribution) Category() string { return CategoryTimingDistribution }

// AsJSON reports the sample count, the sum, and the p50/p90/p95/p99
// percentiles. Percentiles are omitted while the distribution is empty.
func (d *TimingDistribution) AsJSON() any {
	out := map[string]any{
		"count": d.Count(),
		"sum":   d.Sum(),
	}

	if d.Count() > 0 {
		p50, _ := d.sketch.GetValueAtQuantile(0.50)
		p90, _ := d.sketch.GetValueAtQuantile(0.90)
		p95, _ := d.sketch.GetValueAtQuantile(0.95)
		p99, _ := d.sketch.GetValueAtQuantile(0.99)
		out["percentiles"] = map[string]float64{
			"p50": p50,
			"p90": p90,
			"p95": p95,
			"p99": p99,
		}
	}

	return out
}

func (d *TimingDistribution) Clone() Metric {
	return &TimingDistribution{sketch: d.sketch.Copy()}
}

// encodeSketch serializes the underlying sketch, index mapping included,
// so Decode needs no out-of-band configuration.
func (d *TimingDistribution) encodeSketch() ([]byte, error) {
	var b []byte
	d.sketch.Encode(&b, false)
	return b, nil
}

// decodeTimingDistribution rebuilds a timing distribution from an encoded
// sketch.
func decodeTimingDistribution(b []byte) (*TimingDistribution, error) {
	sketch, err := ddsketch.DecodeDDSketch(b, store.DenseStoreConstructor, nil)
	if err != nil {
		return nil, fmt.Errorf("decode ddsketch: %w", err)
	}
	return &TimingDistribution{sketch: sketch}, nil
}
