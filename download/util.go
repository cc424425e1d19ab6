package download

import (
	"context"
	"io"
)

// ContextReader wraps a reader such that reads respect a context. An active
// read is orphaned in its goroutine if the context finishes early.
type ContextReader struct {
	ctx context.Context
	r   io.Reader
}

func NewContextReader(ctx context.Context, r io.Reader) *ContextReader {
	return &ContextReader{
		ctx: ctx,
		r:   r,
	}
}

// Read implements io.Reader#Read(), respecting the ContextReader's embedded
// context.
func (cr *ContextReader) Read(p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}

	resultChan := make(chan result, 1)

	go func() {
		n, err := cr.r.Read(p)
		resultChan <- result{n, err}
	}()

	select {
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	case res := <-resultChan:
		return res.n, res.err
	}
}
