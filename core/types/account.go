package types

import "math/big"

// Account holds the spendable lamport balance for a wallet address. Balances
// use big.Int so settlement arithmetic can never overflow silently.
type Account struct {
	Nonce           uint64   `json:"nonce"`
	BalanceLamports *big.Int `json:"balanceLamports"`
}

// NewAccount returns an account with a zeroed balance.
func NewAccount() *Account {
	return &Account{BalanceLamports: big.NewInt(0)}
}

// Clone returns a deep copy of the account so callers can mutate the copy
// without affecting the stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return NewAccount()
	}
	clone := &Account{Nonce: a.Nonce, BalanceLamports: big.NewInt(0)}
	if a.BalanceLamports != nil {
		clone.BalanceLamports = new(big.Int).Set(a.BalanceLamports)
	}
	return clone
}
