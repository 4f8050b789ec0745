package projection

import "time"

// dateFields are the keys whose component sequences are reassembled.
var dateFields = map[string]bool{
	"date":          true,
	"local_date":    true,
	"datetime_date": true,
}

// localLayout renders wall-clock datetimes that carry no zone.
const localLayout = "2006-01-02T15:04:05.999999"

// components decomposes t into [year, month, day, hour, minute, second,
// microsecond] in its own zone.
func components(t time.Time) []any {
	return []any{
		t.Year(), int(t.Month()), t.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond() / int(time.Microsecond),
	}
}

// recoverDates walks v and replaces the component sequences of date fields
// with datetimes. date and datetime_date are UTC; local_date is a wall
// clock and is rendered without an offset.
func recoverDates(v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			if dateFields[k] {
				if when, ok := assemble(e); ok {
					if k == "local_date" {
						t[k] = when.Format(localLayout)
					} else {
						t[k] = when
					}
					continue
				}
			}
			recoverDates(e)
		}
	case []any:
		for _, e := range t {
			recoverDates(e)
		}
	}
}

// assemble rebuilds a datetime from at least year, month and day; missing
// positions default to zero.
func assemble(v any) (time.Time, bool) {
	seq, ok := v.([]any)
	if !ok || len(seq) < 3 {
		return time.Time{}, false
	}
	var parts [7]int
	for i := 0; i < len(seq) && i < len(parts); i++ {
		n, ok := integer(seq[i])
		if !ok {
			return time.Time{}, false
		}
		parts[i] = n
	}
	return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5],
		parts[6]*int(time.Microsecond), time.UTC), true
}

func integer(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
