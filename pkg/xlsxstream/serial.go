package xlsxstream

import (
	"fmt"
	"sync/atomic"
	"time"

	"cloud.google.com/go/civil"
)

const secondsPerDay = 24 * 60 * 60

var (
	epoch1900 = civil.Date{Year: 1899, Month: time.December, Day: 31}
	epoch1904 = civil.Date{Year: 1904, Month: time.January, Day: 1}
	firstDay  = civil.Date{Year: 1900, Month: time.January, Day: 1}

	exportTimezone atomic.Pointer[time.Location]
)

// SetExportTimezone sets the location timezone-aware values are converted to
// before they are written as serial dates. Passing nil disables the conversion.
func SetExportTimezone(loc *time.Location) {
	exportTimezone.Store(loc)
}

// ExportTimezone returns the location set by SetExportTimezone, or nil.
func ExportTimezone() *time.Location {
	return exportTimezone.Load()
}

// DatetimeToExcelDatetime converts a temporal value into a spreadsheet serial
// date: whole days since the epoch plus the elapsed fraction of the day.
//
// Supported values are time.Time (timezone-aware), civil.DateTime, civil.Date,
// civil.Time (naive) and time.Duration. Any other value returns an error
// wrapping ErrUnsupportedValue.
func DatetimeToExcelDatetime(v any, date1904 bool) (float64, error) {
	serial, err := toSerial(v, date1904)
	if err != nil {
		return 0, fmt.Errorf("%w: %T is not a date, time or duration", ErrUnsupportedValue, v)
	}
	return serial, nil
}

func toSerial(v any, date1904 bool) (float64, error) {
	epoch := epoch1900
	if date1904 {
		epoch = epoch1904
	}

	var serial float64
	switch t := v.(type) {
	case time.Duration:
		serial = float64(t) / float64(24*time.Hour)
		if !date1904 && serial > 59 {
			serial++
		}
		return serial, nil
	case time.Time:
		if loc := ExportTimezone(); loc != nil {
			t = t.In(loc)
		}
		serial = dateTimeSerial(civil.DateTimeOf(t), epoch)
	case *time.Time:
		if t == nil {
			return 0, errNotTemporal
		}
		return toSerial(*t, date1904)
	case civil.DateTime:
		serial = dateTimeSerial(t, epoch)
	case civil.Date:
		serial = dateTimeSerial(civil.DateTime{Date: t}, epoch)
	case civil.Time:
		serial = dateTimeSerial(civil.DateTime{Date: epoch, Time: t}, epoch)
	default:
		return 0, errNotTemporal
	}

	if !date1904 && serial > 59 {
		serial++
	}
	return serial, nil
}

// dateTimeSerial applies the time-only rule: a combined date of 1900-01-01
// is day zero.
func dateTimeSerial(dt civil.DateTime, epoch civil.Date) float64 {
	days := dt.Date.DaysSince(epoch)
	seconds := float64(dt.Time.Hour*3600+dt.Time.Minute*60+dt.Time.Second) +
		float64(dt.Time.Nanosecond)/1e9
	serial := float64(days) + seconds/secondsPerDay
	if dt.Date == firstDay {
		serial--
	}
	return serial
}
