package trackgw

/*------------------------------------------------------------------
 *
 * Purpose:	Helpers for the regex-based text protocol decoders.
 *
 * Description:	Text sentences are matched with one big regexp per
 *		protocol; the matcher walks the capture groups in
 *		order. An absent optional group yields the zero value,
 *		matching how the sentences omit trailing fields.
 *
 *---------------------------------------------------------------*/

import (
	"regexp"
	"strconv"
	"time"

	"github.com/tzneal/coordconv"
)

type patternMatcher struct {
	groups []string
	index  int
}

// matchPattern runs the pattern against the sentence and positions a
// matcher on the first capture group. Returns nil when the sentence
// does not match.
func matchPattern(pattern *regexp.Regexp, sentence string) *patternMatcher {
	groups := pattern.FindStringSubmatch(sentence)
	if groups == nil {
		return nil
	}
	return &patternMatcher{groups: groups, index: 1}
}

func (m *patternMatcher) Next() string {
	if m.index >= len(m.groups) {
		return ""
	}
	value := m.groups[m.index]
	m.index++
	return value
}

func (m *patternMatcher) NextInt() int {
	value, _ := strconv.Atoi(m.Next())
	return value
}

func (m *patternMatcher) NextFloat() float64 {
	value, _ := strconv.ParseFloat(m.Next(), 64)
	return value
}

// NextDateTime consumes six groups: yy MM dd HH mm ss, interpreted in
// the given zone.
func (m *patternMatcher) NextDateTime(loc *time.Location) time.Time {
	return newDateBuilder(loc).
		SetYear(m.NextInt()).
		SetMonth(m.NextInt()).
		SetDay(m.NextInt()).
		SetTime(m.NextInt(), m.NextInt(), m.NextInt()).
		Date()
}

func hemisphereFromRune(hemi rune) coordconv.Hemisphere {
	switch hemi {
	case 'N', 'E':
		return coordconv.HemisphereNorth
	case 'S', 'W':
		return coordconv.HemisphereSouth
	default:
		return coordconv.HemisphereInvalid
	}
}

func hemisphereSign(h coordconv.Hemisphere) float64 {
	if h == coordconv.HemisphereSouth {
		return -1
	}
	return 1
}

func coordinateValue(h coordconv.Hemisphere, degrees, minutes float64) float64 {
	return hemisphereSign(h) * (degrees + minutes/60)
}

// NextHemisphereCoordinate consumes a hemisphere letter group followed
// by degrees and decimal-minutes groups.
func (m *patternMatcher) NextHemisphereCoordinate() float64 {
	h := coordconv.HemisphereInvalid
	if hemi := m.Next(); hemi != "" {
		h = hemisphereFromRune(rune(hemi[0]))
	}
	return coordinateValue(h, m.NextFloat(), m.NextFloat())
}

// NextCoordinateHemisphere is the variant with the hemisphere letter
// group after the numeric groups. An empty hemisphere group counts as
// north/east.
func (m *patternMatcher) NextCoordinateHemisphere() float64 {
	degrees := m.NextFloat()
	minutes := m.NextFloat()
	h := coordconv.HemisphereNorth
	if hemi := m.Next(); hemi != "" {
		h = hemisphereFromRune(rune(hemi[0]))
	}
	return coordinateValue(h, degrees, minutes)
}
