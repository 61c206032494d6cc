package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the coordinator.
const (
	MeasurementGameEvents  = "guess_events"
	MeasurementGameResults = "game_results"
)

// WritePoint queues a point stamped with the current time. Non-blocking.
//
// Example:
//
//	client.WritePoint(influxdb.MeasurementGameEvents,
//	    map[string]string{"device_id": id, "event": "guess_scored"},
//	    map[string]any{"hp": 4, "round": 3})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime queues a point with an explicit timestamp. Non-blocking.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
