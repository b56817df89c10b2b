package trigger

import (
	"context"
	"net/http"
	"sync"

	"iddaemon/internal/idserver"
)

// fakeClient records call order and concurrency. Nil funcs answer 200 {}.
type fakeClient struct {
	deletion func() (*idserver.Response[idserver.DeletionResult], error)
	transfer func() (*idserver.Response[idserver.TransferResult], error)

	mu     sync.Mutex
	calls  []string
	active int
	peak   int
}

func (f *fakeClient) enter(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	f.mu.Unlock()
}

func (f *fakeClient) leave() {
	f.mu.Lock()
	f.active--
	f.mu.Unlock()
}

func (f *fakeClient) DeleteUserIDVData(ctx context.Context) (*idserver.Response[idserver.DeletionResult], error) {
	f.enter("deletion")
	defer f.leave()
	if f.deletion != nil {
		return f.deletion()
	}
	return &idserver.Response[idserver.DeletionResult]{StatusCode: http.StatusOK}, nil
}

func (f *fakeClient) TransferFunds(ctx context.Context) (*idserver.Response[idserver.TransferResult], error) {
	f.enter("transfer")
	defer f.leave()
	if f.transfer != nil {
		return f.transfer()
	}
	return &idserver.Response[idserver.TransferResult]{StatusCode: http.StatusOK}, nil
}

func (f *fakeClient) order() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeClient) maxActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}
