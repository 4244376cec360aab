package domain

import "context"

// VaultHandles are the custody account handles provisioned for one group.
type VaultHandles struct {
	Group     string `json:"group"`
	Insurance string `json:"insurance"`
}

// Vault is the external custody interface. The ledger issues debit and
// credit intents against it and never manages raw balances itself. All
// three calls are fallible; callers must compensate any transfer already
// issued when a later step fails.
type Vault interface {
	Provision(ctx context.Context, groupID string) (VaultHandles, error)
	TransferIn(ctx context.Context, vault, from string, amount int64) error
	TransferOut(ctx context.Context, vault, to string, amount int64) error
}
