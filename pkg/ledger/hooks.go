package ledger

import (
	"context"
	"sync"
)

// CommitHooks collects callbacks that must only run once the outermost
// transaction has committed.
type CommitHooks struct {
	mu  sync.Mutex
	fns []func(ctx context.Context)
}

type commitHooksKey struct{}

// WithCommitHooks returns ctx carrying an empty hook list. Store implementations
// call it when they open an outermost transaction and call Run after commit.
func WithCommitHooks(ctx context.Context) (context.Context, *CommitHooks) {
	h := &CommitHooks{}
	return context.WithValue(ctx, commitHooksKey{}, h), h
}

// AfterCommit defers fn until the transaction carried by ctx commits. A rolled
// back transaction drops fn. Outside a transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	h, ok := ctx.Value(commitHooksKey{}).(*CommitHooks)
	if !ok {
		fn(ctx)
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

// Run calls the collected hooks in registration order.
// ctx must not carry the committed transaction.
func (h *CommitHooks) Run(ctx context.Context) {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ctx)
	}
}
