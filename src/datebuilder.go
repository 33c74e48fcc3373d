package trackgw

import "time"

// dateBuilder assembles a timestamp from fields read off the wire in
// whatever order the protocol delivers them. Two-digit years are
// assumed to be in the 2000s; the trackers this gateway speaks to
// did not exist before then.
type dateBuilder struct {
	year, month, day     int
	hour, minute, second int
	loc                  *time.Location
}

func newDateBuilder(loc *time.Location) *dateBuilder {
	if loc == nil {
		loc = time.UTC
	}
	return &dateBuilder{loc: loc}
}

func (d *dateBuilder) SetYear(year int) *dateBuilder {
	if year < 100 {
		year += 2000
	}
	d.year = year
	return d
}

func (d *dateBuilder) SetMonth(month int) *dateBuilder {
	d.month = month
	return d
}

func (d *dateBuilder) SetDay(day int) *dateBuilder {
	d.day = day
	return d
}

func (d *dateBuilder) SetTime(hour, minute, second int) *dateBuilder {
	d.hour = hour
	d.minute = minute
	d.second = second
	return d
}

func (d *dateBuilder) Date() time.Time {
	return time.Date(d.year, time.Month(d.month), d.day, d.hour, d.minute, d.second, 0, d.loc)
}

// readBcdDate reads the six-byte BCD timestamp yyMMddHHmmss common to
// JT/T 808 style protocols, interpreted in the given zone.
func readBcdDate(r *frameReader, loc *time.Location) time.Time {
	return newDateBuilder(loc).
		SetYear(int(readBcd(r, 2))).
		SetMonth(int(readBcd(r, 2))).
		SetDay(int(readBcd(r, 2))).
		SetTime(int(readBcd(r, 2)), int(readBcd(r, 2)), int(readBcd(r, 2))).
		Date()
}
