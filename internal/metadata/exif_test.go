package metadata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractEXIFOnNonImageReturnsAllNil(t *testing.T) {
	date, camera, location := ExtractEXIF(strings.NewReader("not an image at all"))
	require.Nil(t, date)
	require.Nil(t, camera)
	require.Nil(t, location)
}

func TestParseEXIFDateTimeCanonicalLayout(t *testing.T) {
	got, ok := parseEXIFDateTime("2024:03:15 10:30:00")
	require.True(t, ok)
	require.Equal(t, 2024, got.Year())
	require.Equal(t, 3, int(got.Month()))
	require.Equal(t, 15, got.Day())
}

func TestParseEXIFDateTimeFallbackLayouts(t *testing.T) {
	cases := []string{
		"2024-03-15 10:30:00",
		"2024/03/15 10:30:00",
		"2024:03:15",
		"2024-03-15",
	}
	for _, s := range cases {
		_, ok := parseEXIFDateTime(s)
		require.True(t, ok, "expected %q to parse", s)
	}
}

func TestParseEXIFDateTimeRejectsGarbage(t *testing.T) {
	_, ok := parseEXIFDateTime("not a date")
	require.False(t, ok)
}

func TestFormatShutterSpeedSubSecond(t *testing.T) {
	require.Equal(t, "1/200s", formatShutterSpeed(1, 200))
}

func TestFormatShutterSpeedWholeSeconds(t *testing.T) {
	require.Equal(t, "2.0s", formatShutterSpeed(2, 1))
}

func TestFormatShutterSpeedZeroNumerator(t *testing.T) {
	require.Equal(t, "0s", formatShutterSpeed(0, 1))
}

func TestTrimQuotesStripsQuotesSpacesAndNuls(t *testing.T) {
	require.Equal(t, "Canon", trimQuotes(`"Canon" `))
	require.Equal(t, "Nikon", trimQuotes("Nikon\x00"))
	require.Equal(t, "", trimQuotes(`""`))
}
