package fixwire

import "errors"

var (
	ErrEmptyInput           = errors.New("empty_input")
	ErrBadTag               = errors.New("bad_tag")
	ErrBadEnvelope          = errors.New("bad_envelope")
	ErrBadVersion           = errors.New("bad_version")
	ErrBadLength            = errors.New("bad_length")
	ErrBadChecksum          = errors.New("bad_checksum")
	ErrMissingRequiredField = errors.New("missing_required_field")
)
