package codec

import "errors"

var (
	// ErrInvalidParam is returned for out-of-range or malformed parameters.
	ErrInvalidParam = errors.New("invalid parameter")
	// ErrOptionRejected is returned by option setters that refuse a key or value.
	ErrOptionRejected = errors.New("option rejected")
)

// OptionError describes a failed vendor option write.
type OptionError struct {
	Func   string
	Vendor string
	Key    string
	Value  string
	Err    error
}

func (e *OptionError) Error() string {
	return e.Func + ": " + e.Vendor + " set " + e.Key + "=" + e.Value + ": " + e.Err.Error()
}

func (e *OptionError) Unwrap() error { return e.Err }
