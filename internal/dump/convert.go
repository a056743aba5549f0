package dump

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

type columnKind int

const (
	kindOther columnKind = iota
	kindInteger
	kindFloat
	kindDouble
	kindDateTime
	kindTime
)

// columnKindOf classifies a driver column type name (sql.ColumnType.DatabaseTypeName).
func columnKindOf(typeName string) columnKind {
	name := strings.ToUpper(strings.TrimSpace(typeName))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}

	name = strings.TrimPrefix(name, "UNSIGNED ")
	name = strings.TrimSuffix(name, " UNSIGNED")

	switch name {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "YEAR", "INT2", "INT4", "INT8":
		return kindInteger
	case "FLOAT", "FLOAT4":
		return kindFloat
	case "DOUBLE", "DOUBLE PRECISION", "REAL", "FLOAT8":
		return kindDouble
	case "DATETIME", "TIMESTAMP", "DATE":
		return kindDateTime
	case "TIME":
		return kindTime
	}

	return kindOther
}

// FromDriver converts a value scanned by database/sql into a Value. typeName is the column's
// DatabaseTypeName and decides how textual results are interpreted. Text and binary payloads are
// copied byte for byte. A time.Time keeps its wall clock in its own location, which for the
// MySQL driver is the DSN's loc (UTC unless configured otherwise); the zero time.Time becomes
// the zero date 0000-00-00 00:00:00.
func FromDriver(typeName string, raw any) (Value, error) {
	kind := columnKindOf(typeName)

	switch r := raw.(type) {
	case nil:
		return Null{}, nil
	case int64:
		return Int(r), nil
	case int32:
		return Int(r), nil
	case int:
		return Int(r), nil
	case uint64:
		if r > math.MaxInt64 {
			return Bytes(strconv.FormatUint(r, 10)), nil
		}

		return Int(r), nil
	case bool:
		if r {
			return Int(1), nil
		}

		return Int(0), nil
	case float32:
		return Float(r), nil
	case float64:
		return Double(r), nil
	case time.Time:
		// The driver reports MySQL zero dates as the zero time.
		if r.IsZero() {
			return DateTime{}, nil
		}

		return DateTime{
			Year:        r.Year(),
			Month:       int(r.Month()),
			Day:         r.Day(),
			Hour:        r.Hour(),
			Minute:      r.Minute(),
			Second:      r.Second(),
			Microsecond: r.Nanosecond() / 1000,
		}, nil
	case []byte:
		return fromText(kind, typeName, r)
	case string:
		return fromText(kind, typeName, []byte(r))
	}

	return nil, fmt.Errorf("unsupported driver value %T for column type %q", raw, typeName)
}

func fromText(kind columnKind, typeName string, raw []byte) (Value, error) {
	text := string(raw)

	switch kind {
	case kindInteger:
		n, err := strconv.ParseInt(text, 10, 64)
		if err == nil {
			return Int(n), nil
		}

		if _, uerr := strconv.ParseUint(text, 10, 64); uerr == nil {
			return Bytes(text), nil
		}

		return nil, fmt.Errorf("invalid %s value %q: %w", typeName, text, err)
	case kindFloat:
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q: %w", typeName, text, err)
		}

		return Float(f), nil
	case kindDouble:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q: %w", typeName, text, err)
		}

		return Double(f), nil
	case kindDateTime:
		dt, err := parseDateTime(text)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q: %w", typeName, text, err)
		}

		return dt, nil
	case kindTime:
		t, err := parseTime(text)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q: %w", typeName, text, err)
		}

		return t, nil
	}

	return Bytes(bytes.Clone(raw)), nil
}

// parseDateTime accepts "YYYY-MM-DD" optionally followed by " HH:MM:SS" (or "T" separated) and a
// fraction of up to six digits.
func parseDateTime(s string) (DateTime, error) {
	var dt DateTime

	datePart, clockPart, hasClock := strings.Cut(s, " ")
	if !hasClock {
		datePart, clockPart, hasClock = strings.Cut(s, "T")
	}

	fields := strings.Split(datePart, "-")
	if len(fields) != 3 {
		return dt, fmt.Errorf("expected YYYY-MM-DD")
	}

	var err error
	dt.Year, err = atoi(fields[0], 4)
	if err != nil {
		return dt, err
	}

	dt.Month, err = atoi(fields[1], 2)
	if err != nil {
		return dt, err
	}

	dt.Day, err = atoi(fields[2], 2)
	if err != nil {
		return dt, err
	}

	if !hasClock {
		return dt, nil
	}

	hours, err := parseClock(clockPart, &dt.Minute, &dt.Second, &dt.Microsecond)
	if err != nil {
		return dt, err
	}

	if hours > 23 {
		return dt, fmt.Errorf("hour out of range")
	}

	dt.Hour = hours
	return dt, nil
}

// parseTime accepts "[-]H:MM:SS[.ffffff]" where H may exceed 24 and folds whole days out of the
// hour count.
func parseTime(s string) (Time, error) {
	var t Time

	if strings.HasPrefix(s, "-") {
		t.Negative = true
		s = s[1:]
	}

	hours, err := parseClock(s, &t.Minutes, &t.Seconds, &t.Microsecond)
	if err != nil {
		return t, err
	}

	t.Days = hours / 24
	t.Hours = hours % 24
	return t, nil
}

// parseClock parses "H:MM:SS[.f]" and returns the hour count.
func parseClock(s string, minute *int, second *int, micro *int) (int, error) {
	clock, frac, hasFrac := strings.Cut(s, ".")

	fields := strings.Split(clock, ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("expected HH:MM:SS")
	}

	hours, err := atoi(fields[0], 0)
	if err != nil {
		return 0, err
	}

	*minute, err = atoi(fields[1], 2)
	if err != nil {
		return 0, err
	}

	*second, err = atoi(fields[2], 2)
	if err != nil {
		return 0, err
	}

	if *minute > 59 || *second > 59 {
		return 0, fmt.Errorf("minute or second out of range")
	}

	*micro = 0
	if hasFrac {
		if frac == "" || len(frac) > 6 {
			return 0, fmt.Errorf("fraction must have 1 to 6 digits")
		}

		*micro, err = atoi(frac+strings.Repeat("0", 6-len(frac)), 6)
		if err != nil {
			return 0, err
		}
	}

	return hours, nil
}

// atoi parses an unsigned decimal field of exactly width digits, or any width when width is 0.
func atoi(s string, width int) (int, error) {
	if s == "" || (width > 0 && len(s) != width) {
		return 0, fmt.Errorf("malformed field %q", s)
	}

	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("malformed field %q", s)
		}
	}

	return strconv.Atoi(s)
}

// Cell renders v for a JSON result grid. Byte strings that are not valid UTF-8 are returned
// base64 encoded and non-finite floats become nil. A Float is widened through its shortest
// decimal form, so Float(0.1) renders as 0.1. Pointers are handled as in Encode.
func Cell(v Value) any {
	switch v := deref(v).(type) {
	case nil, Null:
		return nil
	case Int:
		return int64(v)
	case Float:
		f, _ := strconv.ParseFloat(strconv.FormatFloat(float64(v), 'g', -1, 32), 64)
		return finite(f)
	case Double:
		return finite(float64(v))
	case Bytes:
		if utf8.Valid(v) {
			return string(v)
		}

		return base64.StdEncoding.EncodeToString(v)
	case DateTime:
		return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%06d",
			v.Year, v.Month, v.Day, v.Hour, v.Minute, v.Second, v.Microsecond)
	case Time:
		sign := ""
		if v.Negative {
			sign = "-"
		}

		return fmt.Sprintf("%s%dd %02d:%02d:%02d.%06d", sign, v.Days, v.Hours, v.Minutes, v.Seconds, v.Microsecond)
	}

	panic(fmt.Sprintf("dump: unsupported value type %T", v))
}

func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}

	return f
}
