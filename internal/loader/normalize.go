package loader

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"tempsense/internal/readings"
)

type Reason string

const (
	ReasonMalformed          Reason = "malformed"
	ReasonInvalidTimestamp   Reason = "invalid_timestamp"
	ReasonNullField          Reason = "null_field"
	ReasonNullTemperature    Reason = "null_temperature"
	ReasonInvalidTemperature Reason = "invalid_temperature"
	ReasonBatchFailed        Reason = "batch_failed"
	// ReasonDuplicateID marks rows of a batch rejected by the primary key.
	ReasonDuplicateID Reason = "duplicate_id"
)

// Column positions of the export. Header names are ignored.
const (
	colID = iota
	colRoomID
	colNotedDate
	colTemperature
	colLocation
	numColumns
)

// maxTemperature is the largest magnitude DECIMAL(5,2) accepts after rounding.
const maxTemperature = 999.994

var nullTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"#n/a": {},
	"nan":  {},
	"null": {},
	"none": {},
}

func isNull(s string) bool {
	_, ok := nullTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// normalizeBatch splits rows into readings ready for insert (with the raw
// rows they came from, in the same order) and rejections.
func normalizeBatch(rows []rawRow) ([]readings.Reading, []rawRow, []Rejection) {
	good := make([]readings.Reading, 0, len(rows))
	kept := make([]rawRow, 0, len(rows))
	var rejected []Rejection
	for _, row := range rows {
		r, reason, detail := normalizeRow(row)
		if reason != "" {
			rejected = append(rejected, Rejection{Line: row.line, Reason: reason, Detail: detail, Record: row.record})
			continue
		}
		good = append(good, r)
		kept = append(kept, row)
	}
	return good, kept, rejected
}

// normalizeRow applies, in order: width check, timestamp parse, null checks,
// temperature parse. The first failing check names the reason.
func normalizeRow(row rawRow) (readings.Reading, Reason, string) {
	if row.err != nil {
		return readings.Reading{}, ReasonMalformed, row.err.Error()
	}
	rec := row.record
	if len(rec) != numColumns {
		return readings.Reading{}, ReasonMalformed, fmt.Sprintf("want %d fields, got %d", numColumns, len(rec))
	}

	// A blank timestamp is null, not unparseable.
	var r readings.Reading
	if !isNull(rec[colNotedDate]) {
		ts, err := readings.ParseTimestamp(rec[colNotedDate])
		if err != nil {
			return readings.Reading{}, ReasonInvalidTimestamp, err.Error()
		}
		r.NotedAt = ts
	}

	for i, v := range rec {
		if isNull(v) {
			return readings.Reading{}, ReasonNullField, readings.Columns[i] + " is null"
		}
	}
	if isNull(rec[colTemperature]) {
		return readings.Reading{}, ReasonNullTemperature, "temperature is null"
	}

	temp, err := parseDecimal(rec[colTemperature])
	if err != nil {
		return readings.Reading{}, ReasonInvalidTemperature, fmt.Sprintf("temperature %q is not a number", rec[colTemperature])
	}
	if math.IsInf(temp, 0) || math.IsNaN(temp) || math.Abs(temp) > maxTemperature {
		return readings.Reading{}, ReasonInvalidTemperature, fmt.Sprintf("temperature %q out of range", rec[colTemperature])
	}

	r.ID = strings.TrimSpace(rec[colID])
	r.RoomID = strings.TrimSpace(rec[colRoomID])
	r.Temperature = temp
	r.Location = strings.TrimSpace(rec[colLocation])
	return r, "", ""
}

// parseDecimal parses a plain decimal number. ParseFloat also takes hex
// floats ("0x1p4") and digit separators, which the export never contains.
func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	digits := strings.TrimLeft(s, "+-")
	if len(digits) > 1 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		return 0, fmt.Errorf("not a decimal number: %q", s)
	}
	if strings.Contains(s, "_") {
		return 0, fmt.Errorf("not a decimal number: %q", s)
	}
	return strconv.ParseFloat(s, 64)
}
