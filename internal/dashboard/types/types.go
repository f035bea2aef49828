package types

import "time"

type DeviceSummary struct {
	DeviceID      string  `json:"deviceId"`
	AvgTemp       float64 `json:"avgTemp"`
	TotalReadings int64   `json:"totalReadings"`
	MinTemp       float64 `json:"minTemp"`
	MaxTemp       float64 `json:"maxTemp"`
}

type HourlyReading struct {
	Hour         int     `json:"hour"`
	ReadingCount int64   `json:"readingCount"`
	AvgTemp      float64 `json:"avgTemp"`
}

type DailyRange struct {
	Day           time.Time `json:"day"`
	MaxTemp       float64   `json:"maxTemp"`
	MinTemp       float64   `json:"minTemp"`
	AvgTemp       float64   `json:"avgTemp"`
	TotalReadings int64     `json:"totalReadings"`
}

type LocationSummary struct {
	LocationType  string  `json:"locationType"`
	TotalReadings int64   `json:"totalReadings"`
	AvgTemp       float64 `json:"avgTemp"`
	MinTemp       float64 `json:"minTemp"`
	MaxTemp       float64 `json:"maxTemp"`
	// StddevTemp is nil for a location with a single reading.
	StddevTemp *float64 `json:"stddevTemp"`
}

type TopTemperature struct {
	ID           string    `json:"id"`
	RoomID       string    `json:"roomId"`
	NotedDate    time.Time `json:"notedDate"`
	Temperature  float64   `json:"temperature"`
	LocationType string    `json:"locationType"`
}

type MonthlyTrend struct {
	Year          int     `json:"year"`
	Month         int     `json:"month"`
	TotalReadings int64   `json:"totalReadings"`
	AvgTemp       float64 `json:"avgTemp"`
	MinTemp       float64 `json:"minTemp"`
	MaxTemp       float64 `json:"maxTemp"`
}

// Overview fields other than the counts are nil on an empty table.
type Overview struct {
	TotalReadings int64      `json:"totalReadings"`
	TotalDevices  int64      `json:"totalDevices"`
	EarliestDate  *time.Time `json:"earliestDate"`
	LatestDate    *time.Time `json:"latestDate"`
	AvgTemp       *float64   `json:"avgTemp"`
	MinTemp       *float64   `json:"minTemp"`
	MaxTemp       *float64   `json:"maxTemp"`
}

type TemperatureBand struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// Snapshot is everything the dashboard page shows.
type Snapshot struct {
	Overview  Overview
	Bands     []TemperatureBand
	Devices   []DeviceSummary
	Hourly    []HourlyReading
	Daily     []DailyRange
	Locations []LocationSummary
	Top       []TopTemperature
	Monthly   []MonthlyTrend
}
