package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHours(t *testing.T) {
	fr := New("fr")
	assert.Equal(t, "3,5", fr.Hours(3.5))
	assert.Equal(t, "2", fr.Hours(2))
	assert.Equal(t, "1,25", fr.Hours(1.25))
	assert.Equal(t, "0,333", fr.Hours(1.0/3))

	en := New("en")
	assert.Equal(t, "3.5", en.Hours(3.5))
}

func TestDates(t *testing.T) {
	fr := New("fr-FR")
	assert.Equal(t, "08/09", fr.ShortDate("2025-09-08"))
	assert.Equal(t, "08/09/2025", fr.LongDate("2025-09-08"))

	us := New("en-US")
	assert.Equal(t, "09/08", us.ShortDate("2025-09-08"))

	assert.Equal(t, "not-a-date", fr.ShortDate("not-a-date"))
}

func TestNew_BadLocaleFallsBack(t *testing.T) {
	assert.Equal(t, "3,5", New("!!").Hours(3.5))
}
