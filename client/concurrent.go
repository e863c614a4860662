package client

import (
	"context"
	"sync"

	"github.com/adamwoolhether/simplesdk/resource"
	"golang.org/x/sync/errgroup"
)

// ConcurrentClient exposes the verbs of a [Client] in their non-blocking
// form and remembers every operation it issued, so that [Concurrently]
// can wait on them.
type ConcurrentClient struct {
	client *Client

	mu     sync.Mutex
	issued []Awaiter
}

// Get issues [Client.GetAsync].
func (cc *ConcurrentClient) Get(ctx context.Context, path string, opts ...CallOption) *Pending[resource.Payload] {
	p := cc.client.GetAsync(ctx, path, opts...)
	cc.track(p)
	return p
}

// Create issues [Client.CreateAsync].
func (cc *ConcurrentClient) Create(ctx context.Context, path string, body any, opts ...CallOption) *Pending[*resource.SelfResponse] {
	p := cc.client.CreateAsync(ctx, path, body, opts...)
	cc.track(p)
	return p
}

// Update issues [Client.UpdateAsync].
func (cc *ConcurrentClient) Update(ctx context.Context, path string, body any, opts ...CallOption) *Pending[*resource.SelfResponse] {
	p := cc.client.UpdateAsync(ctx, path, body, opts...)
	cc.track(p)
	return p
}

// Destroy issues [Client.DestroyAsync].
func (cc *ConcurrentClient) Destroy(ctx context.Context, path string, opts ...CallOption) *Pending[struct{}] {
	p := cc.client.DestroyAsync(ctx, path, opts...)
	cc.track(p)
	return p
}

func (cc *ConcurrentClient) track(op Awaiter) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	cc.issued = append(cc.issued, op)
}

func (cc *ConcurrentClient) operations() []Awaiter {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	return append([]Awaiter(nil), cc.issued...)
}

// Concurrently hands fn a ConcurrentClient bound to c, then waits for every
// operation fn issued through it. fn returns the pending operations in
// whatever shape suits the caller (a single Pending, a slice, a map or a
// struct); that value is returned as is once all of them have succeeded,
// so reading results from it no longer blocks. If any operation fails the
// first failure is returned.
func Concurrently[R any](c *Client, fn func(cc *ConcurrentClient) R) (R, error) {
	cc := &ConcurrentClient{client: c}
	r := fn(cc)

	if err := Wait(cc.operations()...); err != nil {
		var zero R
		return zero, err
	}

	return r, nil
}

// Wait blocks until every operation has settled and returns the error of
// the first one to fail, in order of completion. Other failures are not
// reported.
func Wait(ops ...Awaiter) error {
	var g errgroup.Group
	for _, op := range ops {
		if op == nil {
			continue
		}
		g.Go(op.Err)
	}

	return g.Wait()
}

// All waits for every operation in ps and returns their results in the
// same order, or the first failure.
func All[T any](ps []*Pending[T]) ([]T, error) {
	ops := make([]Awaiter, len(ps))
	for i, p := range ps {
		ops[i] = p
	}

	if err := Wait(ops...); err != nil {
		return nil, err
	}

	out := make([]T, len(ps))
	for i, p := range ps {
		out[i] = p.Value()
	}

	return out, nil
}

// AllMap waits for every operation in ps and returns their results under
// the same keys, or the first failure.
func AllMap[K comparable, T any](ps map[K]*Pending[T]) (map[K]T, error) {
	ops := make([]Awaiter, 0, len(ps))
	for _, p := range ps {
		ops = append(ops, p)
	}

	if err := Wait(ops...); err != nil {
		return nil, err
	}

	out := make(map[K]T, len(ps))
	for k, p := range ps {
		out[k] = p.Value()
	}

	return out, nil
}
