// Package readings holds the normalized sensor observation and the fixed
// layout of the CSV export it comes from.
package readings

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the "dd-mm-yyyy hh:mm" format used by the export. Day,
// month, hour and minute may be unpadded ("8-12-2018 9:30").
const TimestampLayout = "2-1-2006 15:4"

const Table = "temperature_readings"

// Columns lists the table columns in CSV order.
var Columns = []string{"id", "room_id", "noted_date", "temperature", "location_type"}

type Reading struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"roomId"`
	NotedAt     time.Time `json:"notedDate"`
	Temperature float64   `json:"temperature"`
	Location    string    `json:"locationType"`
}

// Values returns the reading as a row aligned with Columns.
func (r Reading) Values() []any {
	return []any{r.ID, r.RoomID, r.NotedAt, r.Temperature, r.Location}
}

// ParseTimestamp parses s with TimestampLayout. The result carries no zone
// information; it is stored in a TIMESTAMP column as wall time.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse noted_date %q: %w", s, err)
	}
	return t, nil
}
