package harvester

import "errors"

var (
	// ErrCredentialNotFound means the scraped page carried no usable bearer
	// token; the cycle aborts and the caller should retry soon.
	ErrCredentialNotFound = errors.New("credential not found in page")

	// ErrUnexpectedResponse means a fetch returned a non-success status or a
	// success body without the expected shape; remaining queue items are
	// abandoned and the caller should fall back to alternate retrieval.
	ErrUnexpectedResponse = errors.New("unexpected response from platform")

	// ErrMalformedDocument means a conversation body was missing the expected
	// node structure; treated the same as ErrUnexpectedResponse at the queue
	// level since partial retry is unsafe.
	ErrMalformedDocument = errors.New("malformed conversation document")
)
