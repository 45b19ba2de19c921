package errors

import "github.com/pkg/errors"

var (
	// configuration errors
	ErrMissingCredentials = errors.New("missing mandatory credentials")

	// mailbox errors
	ErrConnection = errors.New("mailbox connection failed")
	ErrRetrieval  = errors.New("message retrieval failed")

	// notification errors
	ErrTransport = errors.New("notification transport failed")

	// state errors
	ErrPersistence = errors.New("state persistence failed")
)
