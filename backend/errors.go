package backend

import (
	"fmt"

	"github.com/vfxgo/compute/region"
)

// Kind is the semantic error category of spec.md §7. It is distinct from
// the concrete Go error type: every failure path produces an *Error, and
// Kind says which of the six categories it falls into.
type Kind int

const (
	KindValidation Kind = iota
	KindResource
	KindTransfer
	KindIO
	KindCancellation
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindResource:
		return "resource"
	case KindTransfer:
		return "transfer"
	case KindIO:
		return "io"
	case KindCancellation:
		return "cancellation"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the single typed error the executor's entry points return. It
// names the failing region (if any), the pipeline stage, and the backend,
// and wraps the underlying cause.
type Error struct {
	Kind    Kind
	Stage   string // "upload" | "allocate" | "exec" | "download" | "write" | "plan" | "validate"
	Backend string
	Region  *region.Region
	Err     error
}

func (e *Error) Error() string {
	loc := ""
	if e.Region != nil {
		loc = fmt.Sprintf(" region=%v", *e.Region)
	}
	return fmt.Sprintf("%s: backend=%s stage=%s%s: %v", e.Kind, e.Backend, e.Stage, loc, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with an optional region (pass nil when not
// applicable).
func New(kind Kind, backendName, stage string, r *region.Region, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Backend: backendName, Region: r, Err: cause}
}

// Sentinel causes used as the wrapped Err for conditions callers may want
// to test for specifically via errors.Is.
var (
	ErrDeviceLost       = fmt.Errorf("backend: device lost")
	ErrDeviceOutOfMemory = fmt.Errorf("backend: device out of memory")
	ErrHostOutOfMemory   = fmt.Errorf("backend: host out of memory")
	ErrUnsupported       = fmt.Errorf("backend: unsupported operation")
	ErrTransfer          = fmt.Errorf("backend: transfer failed")
	ErrInternal          = fmt.Errorf("backend: internal kernel assertion failed")
	ErrCancelled         = fmt.Errorf("backend: execution cancelled")
)

// Unsupported wraps ErrUnsupported with a reason, mirroring the spec's
// Unsupported(reason) variant.
func Unsupported(reason string) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, reason)
}
