// Package dates normalisiert die unvollständigen Datumsangaben der Quellen (nur Jahr, Jahr-Monat,
// Jahr-Monat-Tag oder Freitext wie "2024 Jan-Feb") zu vergleichbaren Tageswerten.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind beschreibt, wie genau ein Datum bekannt ist.
type Kind int

const (
	Unparseable Kind = iota
	Year
	YearMonth
	YearMonthDay
)

func (k Kind) String() string {
	switch k {
	case Year:
		return "year"
	case YearMonth:
		return "year-month"
	case YearMonthDay:
		return "year-month-day"
	default:
		return "unparseable"
	}
}

var (
	yearToken = regexp.MustCompile(`\b(\d{4})\b`)
	isoPrefix = regexp.MustCompile(`^\d{4}([-/]|$)`)

	monthNames = map[string]int{
		"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
		"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
	}
)

// PartialDate ist ein Datum, dessen fehlende Bestandteile nicht erfunden werden.
// Month und Day sind nur gültig, wenn Kind sie einschließt.
type PartialDate struct {
	Kind  Kind
	Year  int
	Month int
	Day   int
}

// Unknown ist der Wert für "kein verwertbares Datum".
var Unknown = PartialDate{Kind: Unparseable}

// FromTime übernimmt ein vollständiges Datum.
func FromTime(t time.Time) PartialDate {
	t = t.UTC()
	return PartialDate{Kind: YearMonthDay, Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// ParseMonth akzeptiert "3", "03", "Mar" oder "March".
func ParseMonth(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	if len(s) < 3 {
		return 0, false
	}
	m, ok := monthNames[strings.ToLower(s[:3])]
	return m, ok
}

// FromParts baut ein Datum aus den Einzelteilen, wie sie die Adapter aus ihren Formaten lesen.
// Ein unverständlicher Monatsname fällt auf das Jahr zurück, ein fehlender Tag auf Jahr-Monat.
// Numerische Werte außerhalb des Kalenders bleiben erhalten und machen das Datum unvergleichbar.
func FromParts(year, month, day string) PartialDate {
	year = strings.TrimSpace(year)
	if len(year) != 4 {
		return Unknown
	}
	y, err := strconv.Atoi(year)
	if err != nil || y <= 0 {
		return Unknown
	}
	d := PartialDate{Kind: Year, Year: y}

	m, ok := ParseMonth(month)
	if !ok {
		return d
	}
	d.Kind, d.Month = YearMonth, m

	day = strings.TrimSpace(day)
	if day == "" {
		return d
	}
	dd, err := strconv.Atoi(day)
	if err != nil {
		return d
	}
	d.Kind, d.Day = YearMonthDay, dd
	return d
}

// Parse liest YYYY, YYYY-MM, YYYY-MM-DD (auch mit "/") oder sucht in Freitext nach einem
// vierstelligen Jahr. Liefert nie einen Fehler, sondern Unknown.
func Parse(s string) PartialDate {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}

	if isoPrefix.MatchString(s) {
		if i := strings.IndexAny(s, "T "); i > 0 {
			s = s[:i]
		}
		parts := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '/' })
		for len(parts) < 3 {
			parts = append(parts, "")
		}
		return FromParts(parts[0], parts[1], parts[2])
	}

	return YearToken(s)
}

// YearToken sucht das erste freistehende vierstellige Jahr, z.B. in MedlineDate "2024 Jan-Feb".
func YearToken(s string) PartialDate {
	if m := yearToken.FindStringSubmatch(s); m != nil {
		return FromParts(m[1], "", "")
	}
	return Unknown
}

// Known meldet, ob überhaupt ein Jahr bekannt ist.
func (d PartialDate) Known() bool {
	return d.Kind != Unparseable
}

// Ordinal liefert die Tage seit 1970-01-01 und ergänzt fehlenden Monat/Tag mit 1.
// false, wenn das Datum unbekannt oder kalendarisch ungültig ist.
func (d PartialDate) Ordinal() (int, bool) {
	if d.Kind == Unparseable || d.Year < 1 || d.Year > 9999 {
		return 0, false
	}
	month, day := 1, 1
	if d.Kind >= YearMonth {
		month = d.Month
	}
	if d.Kind == YearMonthDay {
		day = d.Day
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, false
	}
	t := time.Date(d.Year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return 0, false
	}
	return int(t.Unix() / 86400), true
}

// String gibt das Datum in der bekannten Genauigkeit aus, ohne Defaults einzusetzen.
func (d PartialDate) String() string {
	switch d.Kind {
	case Year:
		return fmt.Sprintf("%04d", d.Year)
	case YearMonth:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	case YearMonthDay:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	default:
		return ""
	}
}

// Time liefert den ersten Tag, den das Datum abdeckt.
func (d PartialDate) Time() (time.Time, bool) {
	ord, ok := d.Ordinal()
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(ord)*86400, 0).UTC(), true
}
