package transportfakes

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/transport"
	"github.com/pkg/errors"
)

var _ transport.Doer = (*FakeTransport)(nil)

// Stub decides the outcome of a request to a given path.
type Stub func(req transport.Request) (*transport.Response, error)

// FakeTransport is an in-memory transport.Doer for tests. Responses are
// scripted per path; every call is recorded.
type FakeTransport struct {
	stubs map[string]Stub
	calls []transport.Request
	lock  sync.Mutex
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{stubs: make(map[string]Stub)}
}

// StubPath installs the handler used for every request to path.
func (f *FakeTransport) StubPath(path string, stub Stub) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.stubs[path] = stub
}

// StubJSON installs a handler that always succeeds with the given raw body.
func (f *FakeTransport) StubJSON(path string, body string) {
	f.StubPath(path, func(transport.Request) (*transport.Response, error) {
		return &transport.Response{StatusCode: 200, Body: []byte(body)}, nil
	})
}

// StubStatus installs a handler that always fails with the given status.
func (f *FakeTransport) StubStatus(path string, status int) {
	f.StubPath(path, func(transport.Request) (*transport.Response, error) {
		return nil, &transport.Error{StatusCode: status}
	})
}

func (f *FakeTransport) Do(_ context.Context, req transport.Request) (*transport.Response, error) {
	f.lock.Lock()
	f.calls = append(f.calls, req)
	stub, ok := f.stubs[req.Path]
	f.lock.Unlock()

	if !ok {
		return nil, errors.Errorf("no stub for %s %s", req.Method, req.Path)
	}
	return stub(req)
}

// Calls returns a copy of every request seen so far.
func (f *FakeTransport) Calls() []transport.Request {
	f.lock.Lock()
	defer f.lock.Unlock()
	out := make([]transport.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount counts the requests made to path.
func (f *FakeTransport) CallCount(path string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Path == path {
			n++
		}
	}
	return n
}
