package template

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	// A Wednesday
	ctx := Context{Now: time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC), WeekStart: time.Monday}

	tests := []struct {
		text string
		want string
	}{
		{"no expressions", "no expressions"},
		{"Standup {{date}}", "Standup 2024-03-06"},
		{"{{date:%A %d %B}}", "Wednesday 06 March"},
		{"{{now}}", "2024-03-06T12:00:00Z"},
		{"{{today}}", "2024-03-06"},
		{"due {{tomorrow|date:%d/%m}}", "due 07/03"},
		{"{{weekday(1)|date:%Y-%m-%d}}", "2024-03-04"},
		{"{{weekday(0)}}", "2024-03-10"},
		{"{{ weekday(3) }} and {{date:%Y}}", "2024-03-06 and 2024"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := Expand(tt.text, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandSundayWeekStart(t *testing.T) {
	ctx := Context{Now: time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC), WeekStart: time.Sunday}
	got, err := Expand("{{weekday(0)}}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-03", got)
}

func TestExpandErrors(t *testing.T) {
	ctx := Context{Now: time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)}
	for _, text := range []string{
		"{{bogus}}",
		"{{now|date:%Y}}",
		"{{weekday(9)}}",
		"{{date|upper}}",
	} {
		_, err := Expand(text, ctx)
		assert.Error(t, err, text)
	}
}
