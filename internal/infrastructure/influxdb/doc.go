// Package influxdb writes coordinator game metrics to InfluxDB v2.
//
// Writes are non-blocking and batched by the client library; failures are
// reported through SetOnError.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics off
//	}
//	defer client.Close()
//
//	client.WritePoint(influxdb.MeasurementGameEvents, tags, fields)
package influxdb
