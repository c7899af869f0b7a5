package completion

import (
	"context"
	"sync"
)

// fakeClient implements Client for testing.
type fakeClient struct {
	mu    sync.Mutex
	name  string
	err   error
	text  string
	calls int
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Complete(_ context.Context, req *Request) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Text: f.text, Model: req.Model, Provider: f.name}, nil
}
