package registry

import "errors"

// Errors raised by Register/Introspect/Listen (spec §7, Registry kind).
var (
	ErrAlreadyRegistered = errors.New("registry: function already registered")
	ErrFunctionNotFound  = errors.New("registry: function not found")
	ErrUnsupportedType   = errors.New("registry: unsupported argument or return type")
)
