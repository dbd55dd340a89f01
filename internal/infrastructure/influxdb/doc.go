// Package influxdb provides InfluxDB connectivity for the durable
// backend's bounded history stream (spec §4.2).
//
// It wraps the official influxdb-client-go v2 library: connection
// management, non-blocking batched writes, bounded-window reads, and
// health monitoring.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "drmemd",
//	    Bucket: "readings",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WritePointWithTime("readings",
//	    map[string]string{"device": "furnace:oil"},
//	    map[string]interface{}{"value": "on"},
//	    time.Now())
//
//	points, err := client.QueryHistory(ctx, "furnace:oil", 50)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines. The
// write API uses non-blocking batched writes; query reads block until
// the server responds.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered
// asynchronously via a callback (SetOnError). Connection, health check,
// and query errors are returned directly.
package influxdb
