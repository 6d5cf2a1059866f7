package calendar

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Date is a calendar date column. It is stored as a DATE and rendered as
// YYYY-MM-DD in JSON.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	return Date{Time: Normalize(t)}
}

func (Date) GormDataType() string { return "date" }

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return Normalize(d.Time), nil
}

// storedLayouts are the textual forms drivers without a native date type hand back.
var storedLayouts = []string{
	Layout,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
		return nil
	case time.Time:
		d.Time = Normalize(v)
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("calendar: cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(value string) error {
	value = strings.TrimSpace(value)
	for _, layout := range storedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			d.Time = Normalize(t)
			return nil
		}
	}
	return fmt.Errorf("calendar: cannot parse %q as date", value)
}

func (d Date) String() string { return Format(d.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + Format(d.Time) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	value := strings.Trim(string(b), `"`)
	if value == "" || value == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := Parse(value)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}
