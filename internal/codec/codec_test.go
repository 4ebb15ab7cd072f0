package codec

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
)

func TestIntRangeChecks(t *testing.T) {
	c := Codec{}
	f := fields.Field{Name: "n", DataType: fields.TypeInt8}

	if _, err := c.DatabaseValue(f, int64(127)); err != nil {
		t.Fatalf("127 should fit an int8 field: %v", err)
	}
	_, err := c.DatabaseValue(f, int64(128))
	var rerr *RangeError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RangeError for 128, got %v", err)
	}
	if _, err := c.DatabaseValue(f, int64(-129)); err == nil {
		t.Fatal("expected error for -129")
	}
}

func TestIntegersWidenToInt64(t *testing.T) {
	c := Codec{}
	for _, dt := range []fields.DataType{fields.TypeUInt8, fields.TypeUInt16, fields.TypeUInt32} {
		f := fields.Field{Name: "n", DataType: dt}
		wire, err := c.DatabaseValue(f, uint64(7))
		if err != nil {
			t.Fatalf("%v: %v", dt, err)
		}
		if _, ok := wire.(int64); !ok {
			t.Fatalf("%v should wire as int64, got %T", dt, wire)
		}
		local, err := c.LocalValue(f, wire)
		if err != nil {
			t.Fatal(err)
		}
		if local != int64(7) {
			t.Fatalf("%v local value = %v (%T), want int64(7)", dt, local, local)
		}
	}
}

func TestUInt64KeepsWidth(t *testing.T) {
	c := Codec{}
	f := fields.Field{Name: "n", DataType: fields.TypeUInt64}
	big := uint64(math.MaxUint64)
	wire, err := c.DatabaseValue(f, big)
	if err != nil {
		t.Fatal(err)
	}
	if wire != big {
		t.Fatalf("uint64 must wire unchanged, got %v", wire)
	}
	local, err := c.LocalValue(f, wire)
	if err != nil {
		t.Fatal(err)
	}
	if local != big {
		t.Fatalf("uint64 local value = %v, want %v", local, big)
	}
}

func TestNilPassesThrough(t *testing.T) {
	c := Codec{}
	f := fields.Field{Name: "s", DataType: fields.TypeString}
	wire, err := c.DatabaseValue(f, nil)
	if err != nil || wire != nil {
		t.Fatalf("nil should wire as nil, got %v, %v", wire, err)
	}
	local, err := c.LocalValue(f, nil)
	if err != nil || local != nil {
		t.Fatalf("nil should decode as nil, got %v, %v", local, err)
	}
}

func TestInfinitySentinels(t *testing.T) {
	strict := Codec{}
	lenient := Codec{InfinitySentinels: true}
	f := fields.Field{Name: "x", DataType: fields.TypeFloat64}

	wire, err := lenient.DatabaseValue(f, math.Inf(1))
	if err != nil {
		t.Fatal(err)
	}
	if wire != math.MaxFloat64 {
		t.Fatalf("+Inf should wire as MaxFloat64, got %v", wire)
	}
	local, err := lenient.LocalValue(f, wire)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsInf(local.(float64), 1) {
		t.Fatalf("MaxFloat64 should decode back to +Inf, got %v", local)
	}

	// Without sentinels the maximum is an ordinary value.
	local, err = strict.LocalValue(f, math.MaxFloat64)
	if err != nil {
		t.Fatal(err)
	}
	if local != math.MaxFloat64 {
		t.Fatalf("strict codec altered MaxFloat64: %v", local)
	}

	f32 := fields.Field{Name: "y", DataType: fields.TypeFloat32}
	wire, err = lenient.DatabaseValue(f32, float32(math.Inf(-1)))
	if err != nil {
		t.Fatal(err)
	}
	if wire != float32(-math.MaxFloat32) {
		t.Fatalf("-Inf should wire as -MaxFloat32, got %v", wire)
	}
}

func TestDecimalBounds(t *testing.T) {
	c := Codec{}
	f := fields.Field{Name: "d", DataType: fields.TypeDecimal, MaximumLength: 5.02}

	wire, err := c.DatabaseValue(f, 999.99)
	if err != nil {
		t.Fatal(err)
	}
	if wire != "999.99" {
		t.Fatalf("decimal should wire as scale-formatted string, got %v", wire)
	}
	if _, err := c.DatabaseValue(f, 1000.0); err == nil {
		t.Fatal("1000.00 exceeds precision 5 scale 2")
	}
	if _, err := c.DatabaseValue(f, -1000.0); err == nil {
		t.Fatal("-1000.00 exceeds precision 5 scale 2")
	}

	local, err := c.LocalValue(f, "999.99")
	if err != nil {
		t.Fatal(err)
	}
	if local != 999.99 {
		t.Fatalf("decimal local value = %v, want 999.99", local)
	}
}

func TestStringLengthAndEncoding(t *testing.T) {
	c := Codec{}
	f := fields.Field{Name: "s", DataType: fields.TypeString, MaximumLength: 3}
	if _, err := c.DatabaseValue(f, "abc"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.DatabaseValue(f, "abcd"); err == nil {
		t.Fatal("expected length violation")
	}

	ascii := fields.Field{Name: "a", DataType: fields.TypeString, StringEncoding: fields.EncodingASCII}
	if _, err := c.DatabaseValue(ascii, "plain"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.DatabaseValue(ascii, "smörgås"); err == nil {
		t.Fatal("non-ASCII text must be rejected for ASCII fields")
	}
}

func TestEnumBoxing(t *testing.T) {
	type color int32
	c := Codec{}
	f := fields.Field{
		Name:     "c",
		DataType: fields.TypeEnum,
		Boxer:    func(n int64) any { return color(n) },
	}
	wire, err := c.DatabaseValue(f, color(3))
	if err != nil {
		t.Fatal(err)
	}
	if wire != int64(3) {
		t.Fatalf("enum should wire as int64, got %v (%T)", wire, wire)
	}
	local, err := c.LocalValue(f, int64(3))
	if err != nil {
		t.Fatal(err)
	}
	if local != color(3) {
		t.Fatalf("enum local value = %v (%T), want color(3)", local, local)
	}
}

func TestDateTimeRoundTrips(t *testing.T) {
	c := Codec{}
	ref := time.Date(2024, 3, 9, 14, 30, 45, 123456700, time.UTC)

	cases := []struct {
		dtype fields.DateTimeType
		// granularity the representation preserves.
		trunc time.Duration
	}{
		{fields.DateTimeNative, 0},
		{fields.DateTimeBigIntTicks, 100 * time.Nanosecond},
		{fields.DateTimeBigIntHumanReadable, time.Millisecond},
		{fields.DateTimeDecimalSeconds, 100 * time.Nanosecond},
	}
	for _, tc := range cases {
		f := fields.Field{Name: "t", DataType: fields.TypeDateTime,
			DateTimeKind: fields.KindUTC, DateTimeType: tc.dtype}
		wire, err := c.DatabaseValue(f, ref)
		if err != nil {
			t.Fatalf("%v: %v", tc.dtype, err)
		}
		local, err := c.LocalValue(f, wire)
		if err != nil {
			t.Fatalf("%v: %v", tc.dtype, err)
		}
		got := local.(time.Time)
		want := ref
		if tc.trunc > 0 {
			want = ref.Truncate(tc.trunc)
		}
		if !got.Equal(want) {
			t.Fatalf("%v round trip: got %v, want %v", tc.dtype, got, want)
		}
	}
}

func TestDateTimeDoubleSecondsApproximate(t *testing.T) {
	c := Codec{}
	f := fields.Field{Name: "t", DataType: fields.TypeDateTime,
		DateTimeKind: fields.KindUTC, DateTimeType: fields.DateTimeDoubleSeconds}
	ref := time.Date(2024, 3, 9, 14, 30, 45, 0, time.UTC)
	wire, err := c.DatabaseValue(f, ref)
	if err != nil {
		t.Fatal(err)
	}
	local, err := c.LocalValue(f, wire)
	if err != nil {
		t.Fatal(err)
	}
	// float64 seconds since year 1 carry roughly microsecond resolution.
	if d := local.(time.Time).Sub(ref); d < -time.Millisecond || d > time.Millisecond {
		t.Fatalf("double seconds drifted by %v", d)
	}
}

func TestZeroDateTimeCollapsesToNull(t *testing.T) {
	c := Codec{}
	f := fields.Field{Name: "t", DataType: fields.TypeDateTime,
		DateTimeKind: fields.KindUTC, DateTimeType: fields.DateTimeBigIntTicks}
	wire, err := c.DatabaseValue(f, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if wire != nil {
		t.Fatalf("zero datetime should store as NULL, got %v", wire)
	}
	local, err := c.LocalValue(f, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !local.(time.Time).IsZero() {
		t.Fatalf("NULL datetime should decode to the zero value, got %v", local)
	}
}

func TestZeroTimeSpanCollapsesToNull(t *testing.T) {
	c := Codec{}
	f := fields.Field{Name: "d", DataType: fields.TypeTimeSpan,
		DateTimeType: fields.DateTimeBigIntTicks}
	wire, err := c.DatabaseValue(f, time.Duration(0))
	if err != nil {
		t.Fatal(err)
	}
	if wire != nil {
		t.Fatalf("zero duration should store as NULL, got %v", wire)
	}
	local, err := c.LocalValue(f, nil)
	if err != nil {
		t.Fatal(err)
	}
	if local.(time.Duration) != 0 {
		t.Fatalf("NULL timespan should decode to the zero value, got %v", local)
	}
}

func TestTimeSpanRoundTrips(t *testing.T) {
	c := Codec{}
	ref := 26*time.Hour + 3*time.Minute + 4*time.Second + 500*time.Microsecond
	for _, dtype := range []fields.DateTimeType{
		fields.DateTimeNative,
		fields.DateTimeBigIntTicks,
		fields.DateTimeDecimalSeconds,
	} {
		f := fields.Field{Name: "d", DataType: fields.TypeTimeSpan, DateTimeType: dtype}
		wire, err := c.DatabaseValue(f, ref)
		if err != nil {
			t.Fatalf("%v: %v", dtype, err)
		}
		local, err := c.LocalValue(f, wire)
		if err != nil {
			t.Fatalf("%v: %v", dtype, err)
		}
		if local.(time.Duration) != ref {
			t.Fatalf("%v round trip: got %v, want %v", dtype, local, ref)
		}
	}
}

func TestDecimalSecondsIsLosslessFarFromEpoch(t *testing.T) {
	c := Codec{}
	f := fields.Field{Name: "t", DataType: fields.TypeDateTime,
		DateTimeKind: fields.KindUTC, DateTimeType: fields.DateTimeDecimalSeconds}
	// A date far enough out that float64 seconds could not carry ticks.
	ref := time.Date(2200, 12, 31, 23, 59, 59, 999999900, time.UTC)
	wire, err := c.DatabaseValue(f, ref)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := wire.(string); !ok {
		t.Fatalf("decimal seconds should wire as a string, got %T", wire)
	}
	local, err := c.LocalValue(f, wire)
	if err != nil {
		t.Fatal(err)
	}
	if !local.(time.Time).Equal(ref) {
		t.Fatalf("lost precision: got %v, want %v", local, ref)
	}
}

func TestEscapeString(t *testing.T) {
	got := EscapeString(`it's a "test"` + "\n")
	want := `'it\'s a \"test\"\n'`
	if got != want {
		t.Fatalf("EscapeString = %s, want %s", got, want)
	}
}

func TestEscapeBinary(t *testing.T) {
	got := EscapeBinary([]byte{0xDE, 0xAD})
	if got != "X'dead'" && got != "X'DEAD'" {
		t.Fatalf("EscapeBinary = %s", got)
	}
}
