package transport

import "errors"

var (
	ErrCompressionUnavailable = errors.New("transport: no compressor configured")
	ErrEncoding               = errors.New("transport: encoding failed")
	ErrIncompleteTransport    = errors.New("transport: incomplete segment set")
	ErrIntegrityMismatch      = errors.New("transport: integrity check failed")
	ErrMalformedEnvelope      = errors.New("transport: malformed envelope")
)
