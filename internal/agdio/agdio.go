// Package agdio contains extensions and utilities for package io from the
// standard library, most notably reading of size-limited files.
package agdio

import (
	"fmt"
	"io"
	"os"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/c2h5oh/datasize"
)

// LimitError is returned when the Limit is reached.
type LimitError struct {
	// Limit is the limit that triggered the error.
	Limit int64
}

// Error implements the error interface for *LimitError.
func (err *LimitError) Error() string {
	return fmt.Sprintf("cannot read more than %d bytes", err.Limit)
}

// limitedReader is a wrapper for io.Reader that has a reading limit.
type limitedReader struct {
	r     io.Reader
	limit int64
	n     int64
}

// Read implements the io.Reader interface for *limitedReader.
func (lr *limitedReader) Read(p []byte) (n int, err error) {
	if lr.n == 0 {
		return 0, &LimitError{
			Limit: lr.limit,
		}
	}

	p = p[:min(int64(len(p)), lr.n)]

	n, err = lr.r.Read(p)
	lr.n -= int64(n)

	return n, err
}

// LimitReader returns an io.Reader that reads up to n bytes.  Once that limit
// is reached, a *LimitError is returned from limited's Read method.  Method
// Read of limited is not safe for concurrent use.  n must be non-negative.
func LimitReader(r io.Reader, n int64) (limited io.Reader) {
	return &limitedReader{
		r:     r,
		limit: n,
		n:     n,
	}
}

// ReadFile reads the whole file at path.  If the file contains maxSize bytes or
// more, it returns a *LimitError.  Errors about the missing files can be checked
// with [os.ErrNotExist].
func ReadFile(path string, maxSize datasize.ByteSize) (b []byte, err error) {
	// #nosec G304 -- The path is provided by the trusted configuration.
	f, err := os.Open(path)
	if err != nil {
		// Don't wrap the error, since it already contains the path.
		return nil, err
	}
	defer func() { err = errors.WithDeferred(err, f.Close()) }()

	// #nosec G115 -- The configured size limits are far below math.MaxInt64.
	b, err = io.ReadAll(LimitReader(f, int64(maxSize.Bytes())))
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}

	return b, nil
}
