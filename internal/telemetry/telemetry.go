// Package telemetry turns engine events into InfluxDB points.
package telemetry

import (
	"time"

	"github.com/nerrad567/guessfleet/internal/game"
	"github.com/nerrad567/guessfleet/internal/infrastructure/influxdb"
)

// PointWriter queues a point without blocking. *influxdb.Client satisfies it.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time)
}

// Observer is a game.Observer writing one guess_events point per event and
// one game_results point per finished game.
type Observer struct {
	writer      PointWriter
	coordinator string
}

// NewObserver returns an observer writing through w. coordinatorID is added
// as a tag so several coordinators can share a bucket.
func NewObserver(w PointWriter, coordinatorID string) *Observer {
	return &Observer{writer: w, coordinator: coordinatorID}
}

// Notify implements game.Observer.
func (o *Observer) Notify(ev game.Event) {
	s := ev.Session
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	tags := map[string]string{
		"device_id":   ev.DeviceID,
		"event":       string(ev.Type),
		"coordinator": o.coordinator,
	}
	if ev.Reason != "" {
		tags["reason"] = string(ev.Reason)
	}

	fields := map[string]any{
		"hp":       s.HealthPoints,
		"round":    s.Round,
		"sequence": s.Sequence,
	}
	if ev.Type == game.EventGuessScored {
		fields["correct"] = ev.Correct
	}
	if ev.Type == game.EventSequenceMismatch {
		fields["retries"] = s.MismatchRetries
	}

	o.writer.WritePointWithTime(influxdb.MeasurementGameEvents, tags, fields, ts)

	if ev.Type == game.EventGameFinished {
		o.writer.WritePointWithTime(influxdb.MeasurementGameResults,
			map[string]string{
				"device_id":   ev.DeviceID,
				"reason":      string(ev.Reason),
				"coordinator": o.coordinator,
			},
			map[string]any{
				"final_hp":  s.HealthPoints,
				"correct":   s.Correct,
				"incorrect": s.Incorrect,
			},
			ts,
		)
	}
}
