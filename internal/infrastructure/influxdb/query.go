package influxdb

import (
	"context"
	"fmt"
	"time"
)

// HistoryPoint is one bounded-history sample read back from InfluxDB:
// the reading's timestamp and its value, still in the text encoding the
// durable backend wrote it in (see internal/backend/durable's codec).
type HistoryPoint struct {
	Timestamp time.Time
	Encoded   string
}

// historyRangeStart is far enough in the past that "range(start: ...)"
// never excludes a real reading; InfluxDB has no "unbounded start" Flux
// literal short of an explicit old timestamp.
const historyRangeStart = "-876000h" // 100 years

// QueryHistory returns up to limit readings for device, oldest first,
// from the "readings" measurement written by the durable backend.
func (c *Client) QueryHistory(ctx context.Context, device string, limit int) ([]HistoryPoint, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}
	if limit <= 0 {
		return nil, nil
	}

	flux := fmt.Sprintf(`
		from(bucket: %q)
		  |> range(start: %s)
		  |> filter(fn: (r) => r._measurement == "readings" and r.device == %q and r._field == "value")
		  |> sort(columns: ["_time"], desc: true)
		  |> limit(n: %d)
	`, c.cfg.Bucket, historyRangeStart, device, limit)

	result, err := c.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer result.Close()

	var points []HistoryPoint
	for result.Next() {
		rec := result.Record()
		encoded, ok := rec.Value().(string)
		if !ok {
			continue
		}
		points = append(points, HistoryPoint{Timestamp: rec.Time(), Encoded: encoded})
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, result.Err())
	}

	// Flux returned newest first; History's contract is oldest first.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}
