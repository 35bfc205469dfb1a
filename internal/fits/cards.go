package fits

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/astrogo/fitsio"
)

// Keywords beyond the WCS axis cards.
const (
	keyObject   = "OBJECT"
	keyUnit     = "BUNIT"
	keyComment  = "COMMENT"
	keyDateObs  = "DATE-OBS"
	keyDateEnd  = "DATE-END"
	keyTimeSys  = "TIMESYS"
	keyVersion  = "SPSVER"
	keySource   = "INSTRUME"
	keyAuthor   = "OBSERVER"
	keyName     = "TELESCOP"
	keyLocation = "LOCATION"
	keyLat      = "SITELAT"
	keyLong     = "SITELONG"
	keyChartMax = "CHARTMAX"
	keyChartMin = "CHARTMIN"
	keyTimeZone = "TIMEZONE"
	keyStart    = "SPSSTART"
	keyEnd      = "SPSEND"
	keyScale    = "RAWSCALE"
	keyOffset   = "RAWOFFS"
	keySentinel = "SENTINEL"
)

const (
	object      = "RSS Spectrogram"
	unit        = "Intensity"
	comment     = "Created from SPS sweep data"
	timeSys     = "UTC"
	dateLayout  = "2006-01-02T15:04:05.000000"
	parseLayout = "2006-01-02T15:04:05.999999999"
)

// maxString is the longest quoted value that still fits a single card.
const maxString = 67

// fitsString makes s a legal FITS string value: characters outside printable
// ASCII become '?' and quotes are doubled. The result is cut to a single card
// without splitting an escaped quote.
func fitsString(s string) string {
	var b strings.Builder
	for _, r := range s {
		var esc string
		switch {
		case r == '\'':
			esc = "''"
		case r < 0x20 || r > 0x7e:
			esc = "?"
		default:
			esc = string(r)
		}
		if b.Len()+len(esc) > maxString {
			break
		}
		b.WriteString(esc)
	}
	return b.String()
}

func axisKey(prefix string, n int) string {
	return fmt.Sprintf("%s%d", prefix, n)
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(parseLayout, strings.TrimSpace(s), time.UTC)
}

// cardFloat returns a numeric card value. Numeric cards decode as either
// integers or floats depending on how they were formatted.
func cardFloat(hdr *fitsio.Header, key string) (float64, bool) {
	c := hdr.Get(key)
	if c == nil {
		return 0, false
	}

	switch v := c.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case int16:
		return float64(v), true
	case int8:
		return float64(v), true
	case uint8:
		return float64(v), true
	}
	return 0, false
}

func cardString(hdr *fitsio.Header, key string) (string, bool) {
	c := hdr.Get(key)
	if c == nil {
		return "", false
	}
	s, ok := c.Value.(string)
	return strings.TrimRight(s, " "), ok
}

func requireFloat(hdr *fitsio.Header, key string) (float64, error) {
	v, ok := cardFloat(hdr, key)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: missing or invalid %s card", ErrEncoding, key)
	}
	return v, nil
}

func requireString(hdr *fitsio.Header, key string) (string, error) {
	v, ok := cardString(hdr, key)
	if !ok {
		return "", fmt.Errorf("%w: missing or invalid %s card", ErrEncoding, key)
	}
	return v, nil
}
