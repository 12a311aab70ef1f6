package payment

import "context"

// Actions are the side effects of a terminal outcome: unlocking the course on success,
// telling the student and sending them back to the catalog on expiry.
type Actions interface {
	Succeeded(ctx context.Context, entry LedgerEntry)
	Expired(ctx context.Context, entry LedgerEntry)
}

// ActionFuncs adapts plain functions to Actions. Nil funcs are skipped.
type ActionFuncs struct {
	OnSuccess func(ctx context.Context, entry LedgerEntry)
	OnExpiry  func(ctx context.Context, entry LedgerEntry)
}

var _ Actions = ActionFuncs{}

func (a ActionFuncs) Succeeded(ctx context.Context, entry LedgerEntry) {
	if a.OnSuccess != nil {
		a.OnSuccess(ctx, entry)
	}
}

func (a ActionFuncs) Expired(ctx context.Context, entry LedgerEntry) {
	if a.OnExpiry != nil {
		a.OnExpiry(ctx, entry)
	}
}

type chain []Actions

// ChainActions runs every actions in order.
func ChainActions(actions ...Actions) Actions {
	c := make(chain, 0, len(actions))
	for _, a := range actions {
		if a != nil {
			c = append(c, a)
		}
	}
	return c
}

func (c chain) Succeeded(ctx context.Context, entry LedgerEntry) {
	for _, a := range c {
		a.Succeeded(ctx, entry)
	}
}

func (c chain) Expired(ctx context.Context, entry LedgerEntry) {
	for _, a := range c {
		a.Expired(ctx, entry)
	}
}
