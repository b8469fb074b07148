package las

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors classifying codec failures. Wrapped errors carry byte
// position and field context; use errors.Is against these to classify.
var (
	// ErrFormat marks an unreadable container: bad magic, unsupported
	// major version, header block below the minimum size, record length
	// below the format base size. An unknown point format is not an
	// error; its records are kept as opaque bytes.
	ErrFormat = errors.New("las: malformed file")

	// ErrTruncation marks point or VLR data ending prematurely. The
	// decoded prefix is kept.
	ErrTruncation = errors.New("las: truncated data")

	// ErrValidation marks inputs rejected before a write or update:
	// oversized strings, format/version mismatches, bad filter ranges.
	ErrValidation = errors.New("las: validation failed")

	// ErrUnavailable is returned by point access on containers read with
	// ReadPointsSkip and by attributes requested from a view that cannot
	// serve them.
	ErrUnavailable = errors.New("las: point data unavailable")

	// ErrResource marks filesystem or transport failures.
	ErrResource = errors.New("las: resource error")
)

// WarningKind classifies non fatal conditions surfaced while reading or
// writing a container.
type WarningKind int

const (
	WarnVersion WarningKind = iota
	WarnTruncation
	WarnSummaryDivergence
	WarnReserved
	WarnScanAngleRange
)

func (k WarningKind) String() string {
	switch k {
	case WarnVersion:
		return "version"
	case WarnTruncation:
		return "truncation"
	case WarnSummaryDivergence:
		return "summary-divergence"
	case WarnReserved:
		return "reserved"
	case WarnScanAngleRange:
		return "scan-angle-range"
	}
	return "unknown"
}

// Warning is a non fatal condition attached to the container it was
// observed on.
type Warning struct {
	Kind    WarningKind
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] %s", w.Kind, w.Message)
}

func warningf(kind WarningKind, format string, args ...interface{}) Warning {
	return Warning{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
