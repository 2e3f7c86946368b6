package state

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"kaiwu/core/types"
	"kaiwu/storage"
)

// Manager reads and writes ledger state. Record keys are keccak256 hashes of a
// kind prefix plus the record's derived address, so distinct kinds can never
// collide even if their derivations did.
//
// Manager performs no locking; the hosting node linearizes transitions.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	recordPrefix  = []byte("market/record:")
	accountPrefix = []byte("account:")
	rolePrefix    = []byte("role:")
)

func recordKey(addr types.Address) []byte {
	buf := make([]byte, len(recordPrefix)+types.AddressLength)
	copy(buf, recordPrefix)
	copy(buf[len(recordPrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

func accountKey(addr types.Address) []byte {
	buf := make([]byte, len(accountPrefix)+types.AddressLength)
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

func roleKey(role string) []byte {
	buf := make([]byte, len(rolePrefix)+len(role))
	copy(buf, rolePrefix)
	copy(buf[len(rolePrefix):], role)
	return ethcrypto.Keccak256(buf)
}

// storedAccount is the RLP layout for wallet accounts. RLP cannot encode nil
// big.Ints, so the balance is normalised on write.
type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

// GetAccount loads the account stored at the provided address. Unknown
// addresses yield a fresh zero-balance account, never an error.
func (m *Manager) GetAccount(addr types.Address) (*types.Account, error) {
	data, err := m.db.Get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return types.NewAccount(), nil
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, err
	}
	acc := &types.Account{Nonce: stored.Nonce, BalanceLamports: big.NewInt(0)}
	if stored.Balance != nil {
		acc.BalanceLamports = new(big.Int).Set(stored.Balance)
	}
	return acc, nil
}

// PutAccount persists the account at the provided address.
func (m *Manager) PutAccount(addr types.Address, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	balance := big.NewInt(0)
	if account.BalanceLamports != nil {
		if account.BalanceLamports.Sign() < 0 {
			return fmt.Errorf("state: negative balance not allowed")
		}
		balance = new(big.Int).Set(account.BalanceLamports)
	}
	encoded, err := rlp.EncodeToBytes(&storedAccount{Nonce: account.Nonce, Balance: balance})
	if err != nil {
		return err
	}
	return m.db.Put(accountKey(addr), encoded)
}

// SetRole associates an address with the specified role. Duplicate assignments
// are ignored while the stored list remains sorted for determinism.
func (m *Manager) SetRole(role string, addr types.Address) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("state: role must not be empty")
	}
	if addr.IsZero() {
		return fmt.Errorf("state: address must not be zero")
	}
	key := roleKey(trimmed)
	members, err := m.loadRoleMembers(key)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr[:]) {
			return nil
		}
	}
	members = append(members, append([]byte(nil), addr[:]...))
	sort.Slice(members, func(i, j int) bool {
		return hex.EncodeToString(members[i]) < hex.EncodeToString(members[j])
	})
	encoded, err := rlp.EncodeToBytes(members)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// HasRole reports whether the provided address is associated with the
// specified role. Read errors report false, matching the best-effort
// semantics required by the callers.
func (m *Manager) HasRole(role string, addr types.Address) bool {
	if addr.IsZero() {
		return false
	}
	members, err := m.loadRoleMembers(roleKey(strings.TrimSpace(role)))
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr[:]) {
			return true
		}
	}
	return false
}

// RoleMembers returns all addresses assigned to the provided role.
func (m *Manager) RoleMembers(role string) ([]types.Address, error) {
	members, err := m.loadRoleMembers(roleKey(strings.TrimSpace(role)))
	if err != nil {
		return nil, err
	}
	out := make([]types.Address, 0, len(members))
	for _, member := range members {
		out = append(out, types.BytesToAddress(member))
	}
	return out, nil
}

func (m *Manager) loadRoleMembers(key []byte) ([][]byte, error) {
	data, err := m.db.Get(key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return [][]byte{}, nil
	}
	var members [][]byte
	if err := rlp.DecodeBytes(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}
