package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
)

// Temporal values are measured in ticks: 100ns units counted from
// 0001-01-01T00:00:00 UTC. epochTicks is the tick count at the Unix epoch.
const (
	ticksPerSecond = int64(10_000_000)
	epochTicks     = int64(621_355_968_000_000_000)

	humanReadableFormat = "20060102150405"
)

// ticksOf computes the absolute tick count of t without going through
// time.Duration, which overflows for spans beyond ~292 years.
func ticksOf(t time.Time) int64 {
	return t.Unix()*ticksPerSecond + int64(t.Nanosecond())/100 + epochTicks
}

func timeOfTicks(ticks int64, loc *time.Location) time.Time {
	rel := ticks - epochTicks
	sec := rel / ticksPerSecond
	rem := rel % ticksPerSecond
	if rem < 0 {
		sec--
		rem += ticksPerSecond
	}
	return time.Unix(sec, rem*100).In(loc)
}

// resolveKind converts t into the field's declared timezone kind.
// Unspecified leaves the value untouched.
func resolveKind(t time.Time, kind fields.DateTimeKind) time.Time {
	switch kind {
	case fields.KindUTC:
		return t.UTC()
	case fields.KindLocal:
		return t.Local()
	default:
		return t
	}
}

func kindLocation(kind fields.DateTimeKind) *time.Location {
	if kind == fields.KindLocal {
		return time.Local
	}
	return time.UTC
}

// encodeDateTime renders a non-zero datetime per the field's storage
// representation. Zero values are handled by the caller (they collapse to
// database NULL).
func encodeDateTime(f fields.Field, t time.Time) (any, error) {
	t = resolveKind(t, f.DateTimeKind)
	switch f.DateTimeType {
	case fields.DateTimeNative:
		return t, nil
	case fields.DateTimeBigIntTicks:
		return ticksOf(t), nil
	case fields.DateTimeBigIntHumanReadable:
		s := t.Format(humanReadableFormat) + fmt.Sprintf("%03d", t.Nanosecond()/1_000_000)
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, &ValueError{Field: f.Name, Value: t, Reason: "cannot format human readable datetime"}
		}
		return n, nil
	case fields.DateTimeDecimalSeconds:
		return formatTickSeconds(ticksOf(t)), nil
	case fields.DateTimeDoubleSeconds:
		return float64(ticksOf(t)) / float64(ticksPerSecond), nil
	case fields.DateTimeDoubleEpoch:
		return float64(ticksOf(t)-epochTicks) / float64(ticksPerSecond), nil
	default:
		return nil, &ValueError{Field: f.Name, Value: t, Reason: fmt.Sprintf("unsupported datetime type %v", f.DateTimeType)}
	}
}

func decodeDateTime(f fields.Field, raw any) (time.Time, error) {
	loc := kindLocation(f.DateTimeKind)
	switch f.DateTimeType {
	case fields.DateTimeNative:
		t, err := fields.AsTime(raw)
		if err != nil {
			return time.Time{}, &ValueError{Field: f.Name, Value: raw, Reason: err.Error()}
		}
		return t.In(loc), nil
	case fields.DateTimeBigIntTicks:
		n, err := fields.AsInt64(raw)
		if err != nil {
			return time.Time{}, &ValueError{Field: f.Name, Value: raw, Reason: err.Error()}
		}
		return timeOfTicks(n, loc), nil
	case fields.DateTimeBigIntHumanReadable:
		n, err := fields.AsInt64(raw)
		if err != nil {
			return time.Time{}, &ValueError{Field: f.Name, Value: raw, Reason: err.Error()}
		}
		s := fmt.Sprintf("%017d", n)
		t, err := time.ParseInLocation(humanReadableFormat, s[:14], loc)
		if err != nil {
			return time.Time{}, &ValueError{Field: f.Name, Value: raw, Reason: "unparseable human readable datetime"}
		}
		millis, err := strconv.Atoi(s[14:])
		if err != nil {
			return time.Time{}, &ValueError{Field: f.Name, Value: raw, Reason: "unparseable human readable datetime"}
		}
		return t.Add(time.Duration(millis) * time.Millisecond), nil
	case fields.DateTimeDecimalSeconds:
		ticks, err := parseTickSeconds(raw)
		if err != nil {
			return time.Time{}, &ValueError{Field: f.Name, Value: raw, Reason: err.Error()}
		}
		return timeOfTicks(ticks, loc), nil
	case fields.DateTimeDoubleSeconds:
		v, err := fields.AsFloat64(raw)
		if err != nil {
			return time.Time{}, &ValueError{Field: f.Name, Value: raw, Reason: err.Error()}
		}
		return timeOfTicks(int64(math.Round(v*float64(ticksPerSecond))), loc), nil
	case fields.DateTimeDoubleEpoch:
		v, err := fields.AsFloat64(raw)
		if err != nil {
			return time.Time{}, &ValueError{Field: f.Name, Value: raw, Reason: err.Error()}
		}
		return timeOfTicks(int64(math.Round(v*float64(ticksPerSecond)))+epochTicks, loc), nil
	default:
		return time.Time{}, &ValueError{Field: f.Name, Value: raw, Reason: fmt.Sprintf("unsupported datetime type %v", f.DateTimeType)}
	}
}

func encodeTimeSpan(f fields.Field, d time.Duration) (any, error) {
	ticks := int64(d) / 100
	switch f.DateTimeType {
	case fields.DateTimeNative:
		// Native timespans wire as a nanosecond count; no driver binds
		// time.Duration directly.
		return int64(d), nil
	case fields.DateTimeBigIntTicks:
		return ticks, nil
	case fields.DateTimeDecimalSeconds:
		return formatTickSeconds(ticks), nil
	case fields.DateTimeDoubleSeconds, fields.DateTimeDoubleEpoch:
		return d.Seconds(), nil
	default:
		return nil, &ValueError{Field: f.Name, Value: d, Reason: fmt.Sprintf("unsupported timespan type %v", f.DateTimeType)}
	}
}

func decodeTimeSpan(f fields.Field, raw any) (time.Duration, error) {
	switch f.DateTimeType {
	case fields.DateTimeNative:
		d, err := fields.AsDuration(raw)
		if err != nil {
			return 0, &ValueError{Field: f.Name, Value: raw, Reason: err.Error()}
		}
		return d, nil
	case fields.DateTimeBigIntTicks:
		n, err := fields.AsInt64(raw)
		if err != nil {
			return 0, &ValueError{Field: f.Name, Value: raw, Reason: err.Error()}
		}
		return time.Duration(n * 100), nil
	case fields.DateTimeDecimalSeconds:
		ticks, err := parseTickSeconds(raw)
		if err != nil {
			return 0, &ValueError{Field: f.Name, Value: raw, Reason: err.Error()}
		}
		return time.Duration(ticks * 100), nil
	case fields.DateTimeDoubleSeconds, fields.DateTimeDoubleEpoch:
		v, err := fields.AsFloat64(raw)
		if err != nil {
			return 0, &ValueError{Field: f.Name, Value: raw, Reason: err.Error()}
		}
		return time.Duration(math.Round(v * float64(time.Second))), nil
	default:
		return 0, &ValueError{Field: f.Name, Value: raw, Reason: fmt.Sprintf("unsupported timespan type %v", f.DateTimeType)}
	}
}

// formatTickSeconds renders a tick count as a fixed-point seconds string with
// full tick precision. Going through float64 here would drop sub-second
// digits for dates far from the epoch.
func formatTickSeconds(ticks int64) string {
	neg := ticks < 0
	if neg {
		ticks = -ticks
	}
	s := fmt.Sprintf("%d.%07d", ticks/ticksPerSecond, ticks%ticksPerSecond)
	if neg {
		return "-" + s
	}
	return s
}

func parseTickSeconds(raw any) (int64, error) {
	s, err := fields.AsString(raw)
	if err != nil {
		// Engines returning fixed-point columns as floats lose tick
		// precision; accept them anyway.
		v, ferr := fields.AsFloat64(raw)
		if ferr != nil {
			return 0, err
		}
		return int64(math.Round(v * float64(ticksPerSecond))), nil
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	sec, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable seconds value %q", s)
	}
	// Normalize the fraction to exactly 7 digits.
	if len(frac) > 7 {
		frac = frac[:7]
	}
	for len(frac) < 7 {
		frac += "0"
	}
	sub, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable seconds value %q", s)
	}
	ticks := sec*ticksPerSecond + sub
	if neg {
		ticks = -ticks
	}
	return ticks, nil
}
