package errcoll

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"
)

// WriterErrorCollector is an [Interface] implementation that writes errors to
// a writer.
type WriterErrorCollector struct {
	w io.Writer
}

// NewWriterErrorCollector returns a new properly initialized
// *WriterErrorCollector.  w must not be nil.
func NewWriterErrorCollector(w io.Writer) (c *WriterErrorCollector) {
	return &WriterErrorCollector{
		w: w,
	}
}

// type check
var _ Interface = (*WriterErrorCollector)(nil)

// Collect implements the [Interface] interface for *WriterErrorCollector.
func (c *WriterErrorCollector) Collect(ctx context.Context, err error) {
	_, _ = fmt.Fprintf(c.w, "%s: %s: caught error: %s\n", time.Now(), caller(2), err)
}

// caller returns the file and line of the function skip frames up the stack.
func caller(skip int) (fileLine string) {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "<unknown>"
	}

	return fmt.Sprintf("%s:%d", file, line)
}
