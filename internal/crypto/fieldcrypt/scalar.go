package fieldcrypt

import (
	"fmt"
	"time"

	dErrors "nuca/pkg/domain-errors"
)

// Kind tags the closed set of scalar types the encryption service accepts.
// Decryption returns the original type rather than raw bytes; the encoding of
// type into and out of the payload is this package's contract, not the caller's.
type Kind uint8

const (
	KindBool Kind = iota + 1
	KindText
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// dateLayout is the canonical wire form for dates. Only the calendar day is
// regulated data; time-of-day is never stored.
const dateLayout = "2006-01-02"

// Scalar is a tagged variant carrying exactly one of the supported types.
type Scalar struct {
	Kind Kind
	Bool bool
	Text string
	Date time.Time
}

// BoolValue wraps a boolean scalar (health-condition flags).
func BoolValue(v bool) Scalar {
	return Scalar{Kind: KindBool, Bool: v}
}

// TextValue wraps a text scalar.
func TextValue(v string) Scalar {
	return Scalar{Kind: KindText, Text: v}
}

// DateValue wraps a date scalar (date of birth). The time component is
// truncated to the day in UTC.
func DateValue(v time.Time) Scalar {
	y, m, d := v.UTC().Date()
	return Scalar{Kind: KindDate, Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// encode serializes the scalar as a kind byte followed by the payload.
func (s Scalar) encode() ([]byte, error) {
	switch s.Kind {
	case KindBool:
		b := byte(0)
		if s.Bool {
			b = 1
		}
		return []byte{byte(KindBool), b}, nil
	case KindText:
		return append([]byte{byte(KindText)}, s.Text...), nil
	case KindDate:
		return append([]byte{byte(KindDate)}, s.Date.Format(dateLayout)...), nil
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unsupported scalar kind")
	}
}

// decodeScalar rebuilds a Scalar from an authenticated plaintext payload.
func decodeScalar(raw []byte) (Scalar, error) {
	if len(raw) < 1 {
		return Scalar{}, dErrors.New(dErrors.CodeInternal, "empty scalar payload")
	}
	switch Kind(raw[0]) {
	case KindBool:
		if len(raw) != 2 {
			return Scalar{}, dErrors.New(dErrors.CodeInternal, "malformed bool payload")
		}
		return Scalar{Kind: KindBool, Bool: raw[1] == 1}, nil
	case KindText:
		return Scalar{Kind: KindText, Text: string(raw[1:])}, nil
	case KindDate:
		t, err := time.ParseInLocation(dateLayout, string(raw[1:]), time.UTC)
		if err != nil {
			return Scalar{}, dErrors.Wrap(err, dErrors.CodeInternal, "malformed date payload")
		}
		return Scalar{Kind: KindDate, Date: t}, nil
	default:
		return Scalar{}, dErrors.New(dErrors.CodeInternal, "unknown scalar kind")
	}
}
