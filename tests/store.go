package testutil

import (
	"context"

	"github.com/trezcool/masomopay/core/payment"
)

// HookedStore is a payment.Store calling AfterDelete once a namespace is deleted.
type HookedStore struct {
	payment.Store
	AfterDelete func(namespace string)
}

var _ payment.Store = (*HookedStore)(nil)

func (s *HookedStore) DeleteNamespace(ctx context.Context, namespace string) error {
	err := s.Store.DeleteNamespace(ctx, namespace)
	if s.AfterDelete != nil {
		s.AfterDelete(namespace)
	}
	return err
}
