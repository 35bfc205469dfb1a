package sps

import (
	"strconv"
	"strings"
)

// Note keys that define the frequency axis, in Hz.
const (
	NoteLowFrequency  = "LOWF"
	NoteHighFrequency = "HIGHF"
)

// Notes is the free-text block that follows the header. Recorders embed
// key=value tokens in it; keys are matched case-insensitively.
type Notes struct {
	Text   string
	values map[string]string
}

// ParseNotes splits text into tokens and collects key=value pairs.
func ParseNotes(text string) Notes {
	n := Notes{
		Text:   strings.TrimRight(text, "\x00"),
		values: make(map[string]string),
	}

	tokens := strings.FieldsFunc(n.Text, func(r rune) bool {
		switch r {
		case '*', '\n', '\r', ';', ' ', '\t', '\x00':
			return true
		}
		return false
	})
	for _, token := range tokens {
		key, value, ok := strings.Cut(token, "=")
		if !ok || key == "" {
			continue
		}
		n.values[strings.ToUpper(key)] = value
	}

	return n
}

// Get returns the value stored under key.
func (n Notes) Get(key string) (string, bool) {
	v, ok := n.values[strings.ToUpper(key)]
	return v, ok
}

// Float returns the value stored under key parsed as a float.
func (n Notes) Float(key string) (float64, bool) {
	v, ok := n.Get(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !finite(f) {
		return 0, false
	}
	return f, true
}

// FrequencyRange returns the LOWF/HIGHF pair when both are present and
// ordered.
func (n Notes) FrequencyRange() (low, high float64, ok bool) {
	low, okLow := n.Float(NoteLowFrequency)
	high, okHigh := n.Float(NoteHighFrequency)
	if !okLow || !okHigh || high < low {
		return 0, 0, false
	}
	return low, high, true
}

// Len returns the number of key=value pairs.
func (n Notes) Len() int {
	return len(n.values)
}
