// Package dump encodes row values as SQL literals and writes and restores SQL dump scripts.
//
// Values form a closed set: Null, Int, Float, Double, Bytes, DateTime and Time. The same set
// backs query result grids and dump INSERT statements, and every value encodes to a literal that
// MySQL parses back to an equal value.
package dump

// Value is a single typed database value. The set of implementations is closed.
type Value interface {
	value()
}

// Null is SQL NULL.
type Null struct{}

// Int is a signed 64-bit integer.
type Int int64

// Float is a single precision floating point number.
type Float float32

// Double is a double precision floating point number.
type Double float64

// Bytes is a raw byte sequence, used for text and binary columns alike. It need not be UTF-8.
type Bytes []byte

// DateTime is a calendar date and wall clock time. Fields are kept as is, so MySQL zero dates
// such as 0000-00-00 are representable. Sources with millisecond resolution store the fraction
// as milliseconds * 1000.
type DateTime struct {
	Year        int
	Month       int
	Day         int
	Hour        int
	Minute      int
	Second      int
	Microsecond int
}

// Time is a signed duration. The sign is kept apart from the magnitude so that durations
// shorter than one hour can still be negative.
type Time struct {
	Negative    bool
	Days        int
	Hours       int
	Minutes     int
	Seconds     int
	Microsecond int
}

func (Null) value()     {}
func (Int) value()      {}
func (Float) value()    {}
func (Double) value()   {}
func (Bytes) value()    {}
func (DateTime) value() {}
func (Time) value()     {}

// Pointers to values satisfy Value through their method sets. deref unwraps them, reading a
// nil pointer as NULL.
func deref(v Value) Value {
	switch p := v.(type) {
	case *Null:
		return derefPtr(p)
	case *Int:
		return derefPtr(p)
	case *Float:
		return derefPtr(p)
	case *Double:
		return derefPtr(p)
	case *Bytes:
		return derefPtr(p)
	case *DateTime:
		return derefPtr(p)
	case *Time:
		return derefPtr(p)
	}

	return v
}

func derefPtr[T Value](p *T) Value {
	if p == nil {
		return Null{}
	}

	return *p
}
