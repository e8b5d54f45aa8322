package severity

import (
	"strings"

	"github.com/go-errors/errors"
)

// Severity is the four-level anomaly classification, ordered Low < Critical.
type Severity int

const (
	Low Severity = iota
	Medium
	High
	Critical
)

// All lists every severity in ascending order.
var All = []Severity{Low, Medium, High, Critical}

func (s Severity) String() string {
	switch s {
	case Low:
		return "Low"
	case Medium:
		return "Medium"
	case High:
		return "High"
	case Critical:
		return "Critical"
	}
	return "Unknown"
}

// Parse converts a case-insensitive name into a Severity.
func Parse(name string) (Severity, error) {
	for _, s := range All {
		if strings.EqualFold(name, s.String()) {
			return s, nil
		}
	}
	return Low, errors.Errorf("unknown severity %q", name)
}

// MarshalText encodes the severity as its name.
func (s Severity) MarshalText() ([]byte, error) {
	if s < Low || s > Critical {
		return nil, errors.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
