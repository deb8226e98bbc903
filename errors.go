package txfs

import (
	"errors"
	"fmt"
)

// Status is the ABI-level status code family from the on-disk spec (§6.5).
// At a negated-status-code ABI boundary these would cross as negative ints;
// inside Go they are carried as the Status field of *Error and also satisfy
// error directly, so callers can do errors.Is(err, txfs.NoSpace).
type Status int

const (
	OK Status = iota
	Inval
	Io
	Busy
	NoSpace
	NoEntry
	Exists
	NotDir
	IsDir
	NameTooLong
	BadF
	NotEmpty
	Range
	TooManyFiles
	FileTooBig
	ReadOnly
	NoSys
	NotSupp
	NoMem
	XDev
	Access
	NoLink
	Perm
	Fubar
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case Inval:
		return "Inval"
	case Io:
		return "Io"
	case Busy:
		return "Busy"
	case NoSpace:
		return "NoSpace"
	case NoEntry:
		return "NoEntry"
	case Exists:
		return "Exists"
	case NotDir:
		return "NotDir"
	case IsDir:
		return "IsDir"
	case NameTooLong:
		return "NameTooLong"
	case BadF:
		return "BadF"
	case NotEmpty:
		return "NotEmpty"
	case Range:
		return "Range"
	case TooManyFiles:
		return "TooManyFiles"
	case FileTooBig:
		return "FileTooBig"
	case ReadOnly:
		return "ReadOnly"
	case NoSys:
		return "NoSys"
	case NotSupp:
		return "NotSupp"
	case NoMem:
		return "NoMem"
	case XDev:
		return "XDev"
	case Access:
		return "Access"
	case NoLink:
		return "NoLink"
	case Perm:
		return "Perm"
	case Fubar:
		return "Fubar"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Error satisfies the error interface so a bare Status can be compared with
// errors.Is without wrapping.
func (s Status) Error() string { return s.String() }

// Error wraps a Status with the operation that produced it and, when the
// failure originated below the core (a block device call), the underlying
// cause. Unwrap lets callers use errors.Is/errors.As against both the
// Status sentinels and any wrapped device error.
type Error struct {
	Status Status
	Op     string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("txfs: %s: %s: %s", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("txfs: %s: %s", e.Op, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	if s, ok := target.(Status); ok {
		return e.Status == s
	}
	var te *Error
	if errors.As(target, &te) {
		return te.Status == e.Status
	}
	return false
}

// newErr builds an *Error for op, optionally wrapping cause.
func newErr(op string, status Status, cause error) error {
	return &Error{Status: status, Op: op, Err: cause}
}
