// Package dateparse resolves free-form event date text into UTC intervals.
//
// The parser is intentionally heuristic: it tries a fixed ordered list of
// pattern families and returns on the first match. Text that matches no
// family yields a zero interval, never a guessed value. All civil arithmetic
// happens in the source's timezone; instants are converted to UTC on output.
package dateparse

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lmcheong/eventtide/internal/pipeline"
)

// Default event duration when the text carries no end.
const defaultDuration = 2 * time.Hour

// Year roll-forward thresholds: a resolved date this far in the past is
// assumed to mean next year.
const (
	rangePastWindow  = 60 * 24 * time.Hour
	singlePastWindow = 30 * 24 * time.Hour
)

var months = map[string]time.Month{
	"jan": time.January, "january": time.January, "janeiro": time.January,
	"feb": time.February, "february": time.February, "fev": time.February, "fevereiro": time.February,
	"mar": time.March, "march": time.March, "março": time.March, "marco": time.March,
	"apr": time.April, "april": time.April, "abr": time.April, "abril": time.April,
	"may": time.May, "mai": time.May, "maio": time.May,
	"jun": time.June, "june": time.June, "junho": time.June,
	"jul": time.July, "july": time.July, "julho": time.July,
	"aug": time.August, "august": time.August, "ago": time.August, "agosto": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"set": time.September, "setembro": time.September,
	"oct": time.October, "october": time.October, "out": time.October, "outubro": time.October,
	"nov": time.November, "november": time.November, "novembro": time.November,
	"dec": time.December, "december": time.December, "dez": time.December, "dezembro": time.December,
}

var (
	labelPrefix    = regexp.MustCompile(`(?i)^(date[s]?|when|data|日期)\s*[:：]\s*`)
	parenthetical  = regexp.MustCompile(`\([^)]*\)|（[^）]*）`)
	dashes         = strings.NewReplacer("–", "-", "—", "-", "−", "-", "～", "-", "〜", "-")
	spaces         = regexp.MustCompile(`\s+`)
	trailingClock  = regexp.MustCompile(`(?i)[,\s]+(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
	monthDayRange  = regexp.MustCompile(`(?i)^([\p{L}]{3,9})\.?\s+(\d{1,2})\s*-\s*(\d{1,2})$`)
	dayRangeYear   = regexp.MustCompile(`(?i)^(\d{1,2})\s*-\s*(\d{1,2})\s+([\p{L}]{3,9})\.?\s+(\d{4})$`)
	dayMonthYear   = regexp.MustCompile(`(?i)^(\d{1,2})\s+([\p{L}]{3,9})\.?(?:\s+(\d{4}))?$`)
	monthDayYear   = regexp.MustCompile(`(?i)^([\p{L}]{3,9})\.?\s+(\d{1,2})(?:\s*,)?(?:\s+(\d{4}))?$`)
	cjkDate        = regexp.MustCompile(`^(?:(\d{4})年)?(\d{1,2})月(\d{1,2})日$`)
	isoDate        = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	slashDate      = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	listSeparators = regexp.MustCompile(`\s*(?:,|&|\be\b)\s*`)
	listMonthDay   = regexp.MustCompile(`(?i)^([\p{L}]{3,9})\.?\s+(\d{1,2})$`)
	bareDay        = regexp.MustCompile(`^\d{1,2}$`)
)

// Parse resolves date text in the given civil timezone, relative to now.
func Parse(text string, loc *time.Location, now time.Time) pipeline.Interval {
	if loc == nil {
		loc = time.UTC
	}
	cleaned, clock := clean(text)
	if cleaned == "" {
		return pipeline.Interval{}
	}

	families := []func(string, *time.Location, time.Time, clockTime) pipeline.Interval{
		parseMonthDayRange,
		parseMultiDateList,
		parseDayRangeWithYear,
		parseSingleDate,
		parseNumericDate,
		parseRelative,
	}
	for _, family := range families {
		if iv := family(cleaned, loc, now, clock); iv.Valid() {
			return iv
		}
	}
	return pipeline.Interval{}
}

// ParseIn is Parse with an IANA timezone name. Unknown zones fall back to UTC.
func ParseIn(text, tz string, now time.Time) pipeline.Interval {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return Parse(text, loc, now)
}

type clockTime struct {
	hour, min int
	ok        bool
}

// clean strips labels and weekday parentheticals, normalizes dashes and
// whitespace, and splits off a trailing time-of-day.
func clean(text string) (string, clockTime) {
	s := labelPrefix.ReplaceAllString(strings.TrimSpace(text), "")
	s = parenthetical.ReplaceAllString(s, " ")
	s = dashes.Replace(s)
	s = spaces.ReplaceAllString(s, " ")
	s = strings.Trim(s, " .")

	var clock clockTime
	if m := trailingClock.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		meridiem := strings.ToLower(m[3])
		// A bare trailing number is only a clock when am/pm or minutes
		// disambiguate it from a day-of-month.
		if meridiem != "" || m[2] != "" {
			if meridiem == "pm" && hour < 12 {
				hour += 12
			}
			if meridiem == "am" && hour == 12 {
				hour = 0
			}
			if hour < 24 && minute < 60 {
				clock = clockTime{hour: hour, min: minute, ok: true}
				s = strings.TrimSpace(s[:len(s)-len(m[0])])
			}
		}
	}
	return s, clock
}

func monthByName(tok string) (time.Month, bool) {
	key := strings.ToLower(strings.TrimSuffix(tok, "."))
	if m, ok := months[key]; ok {
		return m, true
	}
	return 0, false
}

func midnight(y int, m time.Month, d int, loc *time.Location) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func daysValid(d int) bool { return d >= 1 && d <= 31 }

// parseMonthDayRange handles "Sep 5-28": both days in one month, year
// inferred as current, rolled forward when the start is long past.
func parseMonthDayRange(s string, loc *time.Location, now time.Time, _ clockTime) pipeline.Interval {
	m := monthDayRange.FindStringSubmatch(s)
	if m == nil {
		return pipeline.Interval{}
	}
	month, ok := monthByName(m[1])
	if !ok {
		return pipeline.Interval{}
	}
	d1, _ := strconv.Atoi(m[2])
	d2, _ := strconv.Atoi(m[3])
	if !daysValid(d1) || !daysValid(d2) || d2 < d1 {
		return pipeline.Interval{}
	}
	year := now.In(loc).Year()
	start := midnight(year, month, d1, loc)
	if now.Sub(start) > rangePastWindow {
		year++
		start = midnight(year, month, d1, loc)
	}
	end := midnight(year, month, d2, loc).AddDate(0, 0, 1)
	return pipeline.Interval{Start: start.UTC(), End: end.UTC()}
}

// parseMultiDateList handles "Sep 6, 13, 20, Oct 1 & 6": a list of days
// across at most two months. Start is the earliest date, end the latest
// plus one day.
func parseMultiDateList(s string, loc *time.Location, now time.Time, _ clockTime) pipeline.Interval {
	tokens := listSeparators.Split(s, -1)
	if len(tokens) < 2 {
		return pipeline.Interval{}
	}
	type monthDay struct {
		month time.Month
		day   int
	}
	var (
		pairs     []monthDay
		current   time.Month
		monthsSet = map[time.Month]struct{}{}
	)
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if m := listMonthDay.FindStringSubmatch(tok); m != nil {
			month, ok := monthByName(m[1])
			if !ok {
				return pipeline.Interval{}
			}
			day, _ := strconv.Atoi(m[2])
			if !daysValid(day) {
				return pipeline.Interval{}
			}
			current = month
			monthsSet[month] = struct{}{}
			pairs = append(pairs, monthDay{month, day})
			continue
		}
		if bareDay.MatchString(tok) && current != 0 {
			day, _ := strconv.Atoi(tok)
			if !daysValid(day) {
				return pipeline.Interval{}
			}
			pairs = append(pairs, monthDay{current, day})
			continue
		}
		return pipeline.Interval{}
	}
	if len(pairs) < 2 || len(monthsSet) > 2 {
		return pipeline.Interval{}
	}

	year := now.In(loc).Year()
	firstMonth := pairs[0].month
	dates := make([]time.Time, 0, len(pairs))
	for _, p := range pairs {
		y := year
		if p.month < firstMonth {
			// Calendar wrap within the list ("Dec 28, Jan 4").
			y++
		}
		dates = append(dates, midnight(y, p.month, p.day, loc))
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	start, last := dates[0], dates[len(dates)-1]
	if now.Sub(start) > rangePastWindow {
		start = start.AddDate(1, 0, 0)
		last = last.AddDate(1, 0, 0)
	}
	return pipeline.Interval{Start: start.UTC(), End: last.AddDate(0, 0, 1).UTC()}
}

// parseDayRangeWithYear handles "27-28 September 2025"; the end day is
// exclusive at the following midnight.
func parseDayRangeWithYear(s string, loc *time.Location, _ time.Time, _ clockTime) pipeline.Interval {
	m := dayRangeYear.FindStringSubmatch(s)
	if m == nil {
		return pipeline.Interval{}
	}
	month, ok := monthByName(m[3])
	if !ok {
		return pipeline.Interval{}
	}
	d1, _ := strconv.Atoi(m[1])
	d2, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[4])
	if !daysValid(d1) || !daysValid(d2) || d2 < d1 {
		return pipeline.Interval{}
	}
	start := midnight(year, month, d1, loc)
	end := midnight(year, month, d2, loc).AddDate(0, 0, 1)
	return pipeline.Interval{Start: start.UTC(), End: end.UTC()}
}

// parseSingleDate handles "15 March 2024", "March 15, 2024", "15 Mar",
// "Mar 15", and "2024年3月15日". Year defaults to the current one, rolled
// forward when the date is more than 30 days past.
func parseSingleDate(s string, loc *time.Location, now time.Time, clock clockTime) pipeline.Interval {
	var (
		month   time.Month
		day     int
		year    int
		hasYear bool
		ok      bool
	)
	if m := dayMonthYear.FindStringSubmatch(s); m != nil {
		if month, ok = monthByName(m[2]); ok {
			day, _ = strconv.Atoi(m[1])
			if m[3] != "" {
				year, _ = strconv.Atoi(m[3])
				hasYear = true
			}
		}
	}
	if !ok {
		if m := monthDayYear.FindStringSubmatch(s); m != nil {
			if month, ok = monthByName(m[1]); ok {
				day, _ = strconv.Atoi(m[2])
				if m[3] != "" {
					year, _ = strconv.Atoi(m[3])
					hasYear = true
				}
			}
		}
	}
	if !ok {
		if m := cjkDate.FindStringSubmatch(s); m != nil {
			mo, _ := strconv.Atoi(m[2])
			if mo >= 1 && mo <= 12 {
				month = time.Month(mo)
				day, _ = strconv.Atoi(m[3])
				if m[1] != "" {
					year, _ = strconv.Atoi(m[1])
					hasYear = true
				}
				ok = true
			}
		}
	}
	if !ok || !daysValid(day) {
		return pipeline.Interval{}
	}

	if !hasYear {
		year = now.In(loc).Year()
		if now.Sub(midnight(year, month, day, loc)) > singlePastWindow {
			year++
		}
	}
	return singleDayInterval(year, month, day, loc, clock)
}

// parseNumericDate handles ISO YYYY-MM-DD and day-first DD/MM/YYYY.
func parseNumericDate(s string, loc *time.Location, _ time.Time, clock clockTime) pipeline.Interval {
	if m := isoDate.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if mo >= 1 && mo <= 12 && daysValid(day) {
			return singleDayInterval(year, time.Month(mo), day, loc, clock)
		}
		return pipeline.Interval{}
	}
	if m := slashDate.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if mo >= 1 && mo <= 12 && daysValid(day) {
			return singleDayInterval(year, time.Month(mo), day, loc, clock)
		}
	}
	return pipeline.Interval{}
}

// parseRelative resolves "today" and "tomorrow" against now in the source zone.
func parseRelative(s string, loc *time.Location, now time.Time, clock clockTime) pipeline.Interval {
	local := now.In(loc)
	switch strings.ToLower(s) {
	case "today", "hoje", "今天":
	case "tomorrow", "amanhã", "amanha", "明天":
		local = local.AddDate(0, 0, 1)
	default:
		return pipeline.Interval{}
	}
	return singleDayInterval(local.Year(), local.Month(), local.Day(), loc, clock)
}

func singleDayInterval(y int, m time.Month, d int, loc *time.Location, clock clockTime) pipeline.Interval {
	start := midnight(y, m, d, loc)
	if clock.ok {
		start = time.Date(y, m, d, clock.hour, clock.min, 0, 0, loc)
	}
	return pipeline.Interval{Start: start.UTC(), End: start.Add(defaultDuration).UTC()}
}
