package dates

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWindow wird für unlesbare oder vertauschte Fenstergrenzen geliefert.
var ErrInvalidWindow = errors.New("invalid date window")

// Window ist ein beidseitig geschlossenes Zeitfenster mit Tagesgenauigkeit.
type Window struct {
	Start PartialDate
	End   PartialDate

	startOrd int
	endOrd   int
}

// NewWindow prüft die Grenzen und berechnet ihre Tageswerte.
func NewWindow(start, end PartialDate) (Window, error) {
	s, ok := start.Ordinal()
	if !ok {
		return Window{}, fmt.Errorf("%w: start %q is not a valid date", ErrInvalidWindow, start.String())
	}
	e, ok := end.Ordinal()
	if !ok {
		return Window{}, fmt.Errorf("%w: end %q is not a valid date", ErrInvalidWindow, end.String())
	}
	if s > e {
		return Window{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidWindow, start, end)
	}
	return Window{Start: start, End: end, startOrd: s, endOrd: e}, nil
}

// ParseWindow liest beide Grenzen mit Parse. Leere Eingaben sind ein Fehler.
func ParseWindow(start, end string) (Window, error) {
	s, e := Parse(start), Parse(end)
	if !s.Known() {
		return Window{}, fmt.Errorf("%w: cannot parse start %q", ErrInvalidWindow, start)
	}
	if !e.Known() {
		return Window{}, fmt.Errorf("%w: cannot parse end %q", ErrInvalidWindow, end)
	}
	return NewWindow(s, e)
}

// LastDays liefert das Fenster der letzten n Tage, endend am heutigen UTC-Tag.
func LastDays(now time.Time, n int) Window {
	end := now.UTC()
	w, _ := NewWindow(FromTime(end.AddDate(0, 0, -n)), FromTime(end))
	return w
}

// Keep entscheidet über ein Datum: innerhalb des Fensters oder unbekannt bleibt, alles andere fällt raus.
func (w Window) Keep(d PartialDate) bool {
	ord, ok := d.Ordinal()
	if !ok {
		return true
	}
	return w.startOrd <= ord && ord <= w.endOrd
}

// PubMedBounds formatiert das Fenster für die esearch-Parameter mindate/maxdate.
func (w Window) PubMedBounds() (string, string) {
	return slashDate(w.Start), slashDate(w.End)
}

func (w Window) String() string {
	return w.Start.String() + ".." + w.End.String()
}

func slashDate(d PartialDate) string {
	t, ok := d.Time()
	if !ok {
		return ""
	}
	return t.Format("2006/01/02")
}
