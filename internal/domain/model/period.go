package model

import (
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// LandsatEpoch is the first date any registered sensor has imagery for (Landsat 5 launch year).
var LandsatEpoch = time.Date(1984, time.January, 1, 0, 0, 0, 0, time.UTC)

// TimePeriod is a half-open acquisition window [Start, End) restricted to one calendar month.
type TimePeriod struct {
	Start time.Time
	End   time.Time
	Month time.Month

	// parseErr holds a date format error from decoding, reported by Validate.
	parseErr error
}

// NewTimePeriod parses YYYY-MM-DD bounds and validates the result.
func NewTimePeriod(start, end string, month int) (TimePeriod, error) {
	s, err := parseDate("start_date", start)
	if err != nil {
		return TimePeriod{}, err
	}
	e, err := parseDate("end_date", end)
	if err != nil {
		return TimePeriod{}, err
	}
	p := TimePeriod{Start: s, End: e, Month: time.Month(month)}
	return p, p.Validate()
}

// Validate checks the window. End dates after today are rejected because no imagery
// exists for them yet.
func (p TimePeriod) Validate() error {
	if p.parseErr != nil {
		return p.parseErr
	}
	if p.Month < time.January || p.Month > time.December {
		return invalid("month", "must be between 1 and 12, got %d", int(p.Month))
	}
	if !p.Start.Before(p.End) {
		return invalid("end_date", "end date must be after start date")
	}
	if p.Start.Before(LandsatEpoch) {
		return invalid("start_date", "cannot be before %d (Landsat 5 launch)", LandsatEpoch.Year())
	}
	if p.End.After(time.Now().UTC()) {
		return invalid("end_date", "cannot be in the future")
	}
	return nil
}

// Contains reports whether t falls inside [Start, End) and in the period's month.
func (p TimePeriod) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End) && t.Month() == p.Month
}

func (p TimePeriod) Equal(o TimePeriod) bool {
	return p.Start.Equal(o.Start) && p.End.Equal(o.End) && p.Month == o.Month
}

func (p TimePeriod) String() string {
	return fmt.Sprintf("%s..%s/%s", p.Start.Format(dateLayout), p.End.Format(dateLayout), p.Month)
}

type periodJSON struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Month     int    `json:"month"`
}

func (p TimePeriod) MarshalJSON() ([]byte, error) {
	return json.Marshal(periodJSON{
		StartDate: p.Start.Format(dateLayout),
		EndDate:   p.End.Format(dateLayout),
		Month:     int(p.Month),
	})
}

// UnmarshalJSON only parses. Malformed dates are kept as a pending error so that
// request validation can report them under the period's field path.
func (p *TimePeriod) UnmarshalJSON(data []byte) error {
	var raw periodJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = TimePeriod{Month: time.Month(raw.Month)}
	if p.Start, p.parseErr = parseDate("start_date", raw.StartDate); p.parseErr != nil {
		return nil
	}
	p.End, p.parseErr = parseDate("end_date", raw.EndDate)
	return nil
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, invalid(field, "use YYYY-MM-DD: %v", err)
	}
	return t, nil
}
