package views

import (
	"fmt"
	"strconv"
	"time"

	"tempsense/internal/dashboard/types"
)

// DailyWindow is how many of the most recent days the daily chart shows.
const DailyWindow = 30

// TopDateLayout formats timestamps in the top temperatures table.
const TopDateLayout = "02/01/2006 15:04"

type Metric struct {
	Label string
	Value string
}

// Bar is one row of a CSS bar chart. Width is a percentage of the largest
// value in the chart.
type Bar struct {
	Label string
	Value string
	Width float64
}

type DailyRow struct {
	Day              string
	Max, Avg, Min    string
	MaxW, AvgW, MinW float64
	Readings         int64
}

type LocationRow struct {
	Location      string
	Readings      int64
	Avg, Min, Max string
	Stddev        string
}

type TopRow struct {
	Rank        int
	ID          string
	Room        string
	Date        string
	Temperature string
	Location    string
}

type MonthlyRow struct {
	Period        string
	Readings      int64
	Avg, Min, Max string
	Width         float64
}

type DashboardData struct {
	Title     string
	Empty     bool
	Metrics   []Metric
	Bands     []Bar
	DeviceAvg []Bar
	DeviceN   []Bar
	HourlyN   []Bar
	HourlyAvg []Bar
	Daily     []DailyRow
	Locations []LocationRow
	Top       []TopRow
	Monthly   []MonthlyRow
}

func NewDashboardData(s types.Snapshot) *DashboardData {
	d := &DashboardData{
		Title: "IoT temperature dashboard",
		Empty: s.Overview.TotalReadings == 0,
	}
	d.Metrics = overviewMetrics(s.Overview)

	bandVals := make([]float64, len(s.Bands))
	for i, b := range s.Bands {
		bandVals[i] = float64(b.Count)
	}
	for i, b := range s.Bands {
		d.Bands = append(d.Bands, Bar{Label: b.Label, Value: strconv.FormatInt(b.Count, 10), Width: width(bandVals[i], bandVals)})
	}

	avgs := make([]float64, len(s.Devices))
	counts := make([]float64, len(s.Devices))
	for i, dev := range s.Devices {
		avgs[i] = dev.AvgTemp
		counts[i] = float64(dev.TotalReadings)
	}
	for i, dev := range s.Devices {
		d.DeviceAvg = append(d.DeviceAvg, Bar{Label: dev.DeviceID, Value: formatTemp(dev.AvgTemp), Width: width(avgs[i], avgs)})
		d.DeviceN = append(d.DeviceN, Bar{Label: dev.DeviceID, Value: strconv.FormatInt(dev.TotalReadings, 10), Width: width(counts[i], counts)})
	}

	hourN := make([]float64, len(s.Hourly))
	hourAvg := make([]float64, len(s.Hourly))
	for i, h := range s.Hourly {
		hourN[i] = float64(h.ReadingCount)
		hourAvg[i] = h.AvgTemp
	}
	for i, h := range s.Hourly {
		label := fmt.Sprintf("%02dh", h.Hour)
		d.HourlyN = append(d.HourlyN, Bar{Label: label, Value: strconv.FormatInt(h.ReadingCount, 10), Width: width(hourN[i], hourN)})
		d.HourlyAvg = append(d.HourlyAvg, Bar{Label: label, Value: formatTemp(h.AvgTemp), Width: width(hourAvg[i], hourAvg)})
	}

	d.Daily = dailyRows(lastDays(s.Daily, DailyWindow))

	for _, l := range s.Locations {
		row := LocationRow{
			Location: l.LocationType,
			Readings: l.TotalReadings,
			Avg:      formatTemp(l.AvgTemp),
			Min:      formatTemp(l.MinTemp),
			Max:      formatTemp(l.MaxTemp),
			Stddev:   "n/a",
		}
		if l.StddevTemp != nil {
			row.Stddev = formatTemp(*l.StddevTemp)
		}
		d.Locations = append(d.Locations, row)
	}

	for i, t := range s.Top {
		d.Top = append(d.Top, TopRow{
			Rank:        i + 1,
			ID:          t.ID,
			Room:        t.RoomID,
			Date:        t.NotedDate.Format(TopDateLayout),
			Temperature: formatTemp(t.Temperature),
			Location:    t.LocationType,
		})
	}

	monthAvg := make([]float64, len(s.Monthly))
	for i, m := range s.Monthly {
		monthAvg[i] = m.AvgTemp
	}
	for i, m := range s.Monthly {
		d.Monthly = append(d.Monthly, MonthlyRow{
			Period:   fmt.Sprintf("%04d-%02d", m.Year, m.Month),
			Readings: m.TotalReadings,
			Avg:      formatTemp(m.AvgTemp),
			Min:      formatTemp(m.MinTemp),
			Max:      formatTemp(m.MaxTemp),
			Width:    width(monthAvg[i], monthAvg),
		})
	}
	return d
}

func overviewMetrics(o types.Overview) []Metric {
	return []Metric{
		{Label: "Total readings", Value: strconv.FormatInt(o.TotalReadings, 10)},
		{Label: "Devices", Value: strconv.FormatInt(o.TotalDevices, 10)},
		{Label: "Average", Value: optTemp(o.AvgTemp)},
		{Label: "Minimum", Value: optTemp(o.MinTemp)},
		{Label: "Maximum", Value: optTemp(o.MaxTemp)},
		{Label: "Period", Value: period(o.EarliestDate, o.LatestDate)},
	}
}

// lastDays keeps the n most recent days, oldest first. Input is ordered by day.
func lastDays(days []types.DailyRange, n int) []types.DailyRange {
	if len(days) <= n {
		return days
	}
	return days[len(days)-n:]
}

func dailyRows(days []types.DailyRange) []DailyRow {
	var all []float64
	for _, d := range days {
		all = append(all, d.MaxTemp)
	}
	rows := make([]DailyRow, 0, len(days))
	for _, d := range days {
		rows = append(rows, DailyRow{
			Day:      d.Day.Format(time.DateOnly),
			Max:      formatTemp(d.MaxTemp),
			Avg:      formatTemp(d.AvgTemp),
			Min:      formatTemp(d.MinTemp),
			MaxW:     width(d.MaxTemp, all),
			AvgW:     width(d.AvgTemp, all),
			MinW:     width(d.MinTemp, all),
			Readings: d.TotalReadings,
		})
	}
	return rows
}

// width scales v against the largest value in all, as a percentage.
func width(v float64, all []float64) float64 {
	var hi float64
	for _, x := range all {
		hi = max(hi, x)
	}
	if hi <= 0 || v <= 0 {
		return 0
	}
	return v * 100 / hi
}

func formatTemp(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + " °C"
}

func optTemp(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return formatTemp(*v)
}

func period(from, to *time.Time) string {
	if from == nil || to == nil {
		return "n/a"
	}
	return from.Format(time.DateOnly) + " to " + to.Format(time.DateOnly)
}
