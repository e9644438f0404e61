package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind tells which field of a Value is set.
type Kind int

const (
	Empty Kind = iota
	Number
	Text
	Time
)

// Value is a single spreadsheet cell.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
	At   time.Time
}

func NumberValue(v float64) Value { return Value{Kind: Number, Num: v} }
func TextValue(s string) Value { return Value{Kind: Text, Str: s} }
func TimeValue(t time.Time) Value { return Value{Kind: Time, At: t} }
func EmptyValue() Value { return Value{} }

// ParseCell infers the kind of a raw cell string: blank cells are empty,
// numeric cells are numbers, everything else is text.
func ParseCell(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return EmptyValue()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) {
		return NumberValue(f)
	}
	return TextValue(raw)
}

// IsMissing reports whether the value is empty or a NaN number.
func (v Value) IsMissing() bool {
	return v.Kind == Empty || (v.Kind == Number && math.IsNaN(v.Num))
}

func (v Value) String() string {
	switch v.Kind {
	case Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case Text:
		return v.Str
	case Time:
		if v.At.Hour() == 0 && v.At.Minute() == 0 && v.At.Second() == 0 && v.At.Nanosecond() == 0 {
			return v.At.Format("2006-01-02")
		}
		return v.At.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}
