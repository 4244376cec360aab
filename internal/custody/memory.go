package custody

import (
	"context"
	"fmt"
	"sync"

	"github.com/Emmyhack/Ahorro/internal/domain"
)

// Bank is an in-process custody implementation that tracks real balances
// per vault handle. It backs local mode and the service tests, where it
// doubles as the ground truth for conservation checks.
type Bank struct {
	mu       sync.Mutex
	balances map[string]int64

	// Optional test hooks, invoked before the corresponding operation
	// mutates state. Returning an error aborts the call.
	BeforeProvision   func(groupID string) error
	BeforeTransferIn  func(vault, from string, amount int64) error
	BeforeTransferOut func(vault, to string, amount int64) error
}

// NewBank creates an empty in-process custody bank.
func NewBank() *Bank {
	return &Bank{balances: make(map[string]int64)}
}

// Provision creates zero-balance group and insurance accounts.
func (b *Bank) Provision(_ context.Context, groupID string) (domain.VaultHandles, error) {
	if b.BeforeProvision != nil {
		if err := b.BeforeProvision(groupID); err != nil {
			return domain.VaultHandles{}, err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	handles := domain.VaultHandles{
		Group:     "mem:" + groupID + ":group",
		Insurance: "mem:" + groupID + ":insurance",
	}
	if _, exists := b.balances[handles.Group]; exists {
		return domain.VaultHandles{}, fmt.Errorf("custody: vaults for group %s already provisioned", groupID)
	}
	b.balances[handles.Group] = 0
	b.balances[handles.Insurance] = 0
	return handles, nil
}

// TransferIn credits the vault.
func (b *Bank) TransferIn(_ context.Context, vault, from string, amount int64) error {
	if b.BeforeTransferIn != nil {
		if err := b.BeforeTransferIn(vault, from, amount); err != nil {
			return err
		}
	}
	if amount < 0 {
		return fmt.Errorf("custody: negative transfer of %d into %s", amount, vault)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.balances[vault]; !ok {
		return fmt.Errorf("custody: unknown vault %s", vault)
	}
	b.balances[vault] += amount
	return nil
}

// TransferOut debits the vault, rejecting overdrafts.
func (b *Bank) TransferOut(_ context.Context, vault, to string, amount int64) error {
	if b.BeforeTransferOut != nil {
		if err := b.BeforeTransferOut(vault, to, amount); err != nil {
			return err
		}
	}
	if amount < 0 {
		return fmt.Errorf("custody: negative transfer of %d out of %s", amount, vault)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bal, ok := b.balances[vault]
	if !ok {
		return fmt.Errorf("custody: unknown vault %s", vault)
	}
	if bal < amount {
		return fmt.Errorf("custody: vault %s holds %d, cannot debit %d", vault, bal, amount)
	}
	b.balances[vault] = bal - amount
	return nil
}

// Balance returns the current balance of a vault handle.
func (b *Bank) Balance(vault string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[vault]
}

// Compile-time interface check.
var _ domain.Vault = (*Bank)(nil)
