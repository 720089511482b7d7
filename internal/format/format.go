// Package format renders hour values and date keys for the matrix
// consumers, following the configured locale.
package format

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"coursedash/internal/model"
)

// Format is a locale-bound renderer. The zero value is not usable; call New.
type Format struct {
	printer   *message.Printer
	shortDate string
	longDate  string
}

// New returns a Format for a BCP 47 locale such as "fr" or "en-GB".
// Unparseable locales fall back to French, the timetables' language.
func New(locale string) Format {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.French
	}
	f := Format{
		printer:   message.NewPrinter(tag),
		shortDate: "02/01",
		longDate:  "02/01/2006",
	}
	if base, _ := tag.Base(); base.String() == "en" {
		if region, _ := tag.Region(); region.String() == "US" {
			f.shortDate = "01/02"
			f.longDate = "01/02/2006"
		}
	}
	return f
}

// Hours renders a number of hours with at most three decimals and no
// trailing zeros: 3.5 is "3,5" in French.
func (f Format) Hours(v float64) string {
	return f.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(3)))
}

// ShortDate renders a date key as day and month.
func (f Format) ShortDate(dateKey string) string {
	return f.date(dateKey, f.shortDate)
}

// LongDate renders a date key with the year.
func (f Format) LongDate(dateKey string) string {
	return f.date(dateKey, f.longDate)
}

func (f Format) date(dateKey, layout string) string {
	t, err := time.Parse(model.DateKeyLayout, dateKey)
	if err != nil {
		return dateKey
	}
	return t.Format(layout)
}
