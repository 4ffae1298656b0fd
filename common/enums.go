// Package common keeps enums shared by configuration and command line so
// both could parse the same spelling.
package common

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEnum is returned when enum value cannot be parsed.
var ErrInvalidEnum = errors.New("not a valid value")

// OutputFmt is requested type of render result.
type OutputFmt int

const (
	// OutputFmtHTML is complete HTML document with slides and theme CSS.
	OutputFmtHTML OutputFmt = iota
	// OutputFmtJSON is render result serialized as JSON.
	OutputFmtJSON
)

var outputFmtNames = []string{"html", "json"}

func (o OutputFmt) String() string {
	if o < 0 || int(o) >= len(outputFmtNames) {
		return fmt.Sprintf("OutputFmt(%d)", int(o))
	}
	return outputFmtNames[o]
}

// Ext returns file extension for the format.
func (o OutputFmt) Ext() string {
	switch o {
	case OutputFmtHTML:
		return ".html"
	case OutputFmtJSON:
		return ".json"
	default:
		// this should never happen
		panic("unsupported format requested")
	}
}

// OutputFmtNames returns all known format names.
func OutputFmtNames() []string {
	return append([]string(nil), outputFmtNames...)
}

// ParseOutputFmt converts name to OutputFmt, case insensitive.
func ParseOutputFmt(name string) (OutputFmt, error) {
	for i, n := range outputFmtNames {
		if strings.EqualFold(n, name) {
			return OutputFmt(i), nil
		}
	}
	return OutputFmt(0), fmt.Errorf("%s is %w for OutputFmt, try [%s]", name, ErrInvalidEnum, strings.Join(outputFmtNames, ", "))
}

func (o OutputFmt) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *OutputFmt) UnmarshalText(text []byte) error {
	v, err := ParseOutputFmt(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// AnchorMode selects how slide ids are generated.
type AnchorMode int

const (
	// AnchorModeIndex uses 1-based slide number.
	AnchorModeIndex AnchorMode = iota
	// AnchorModeHeading uses slug of the first heading of slide.
	AnchorModeHeading
	// AnchorModeNone disables ids.
	AnchorModeNone
)

var anchorModeNames = []string{"index", "heading", "none"}

func (a AnchorMode) String() string {
	if a < 0 || int(a) >= len(anchorModeNames) {
		return fmt.Sprintf("AnchorMode(%d)", int(a))
	}
	return anchorModeNames[a]
}

// AnchorModeNames returns all known anchor mode names.
func AnchorModeNames() []string {
	return append([]string(nil), anchorModeNames...)
}

// ParseAnchorMode converts name to AnchorMode, case insensitive.
func ParseAnchorMode(name string) (AnchorMode, error) {
	for i, n := range anchorModeNames {
		if strings.EqualFold(n, name) {
			return AnchorMode(i), nil
		}
	}
	return AnchorMode(0), fmt.Errorf("%s is %w for AnchorMode, try [%s]", name, ErrInvalidEnum, strings.Join(anchorModeNames, ", "))
}

func (a AnchorMode) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AnchorMode) UnmarshalText(text []byte) error {
	v, err := ParseAnchorMode(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
