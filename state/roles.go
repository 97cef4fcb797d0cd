package state

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
)

// RoleOperator identifies the operator capability queried by the vault's
// access gate. Membership is managed here, outside the vault core.
const RoleOperator = "operator"

var rolePrefix = []byte("vault/role/")

func roleKey(role string) []byte {
	return append(append([]byte(nil), rolePrefix...), role...)
}

// GrantRole associates an address with the specified role. Duplicate grants
// are ignored while the stored list remains sorted for determinism.
func (m *Manager) GrantRole(role string, addr [20]byte) error {
	if role == "" {
		return fmt.Errorf("state: role must not be empty")
	}
	key := roleKey(role)
	var members [][]byte
	if _, err := m.get(key, &members); err != nil {
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
	return m.put(key, members)
}

// RevokeRole removes an address from the specified role.
func (m *Manager) RevokeRole(role string, addr [20]byte) error {
	if role == "" {
		return fmt.Errorf("state: role must not be empty")
	}
	key := roleKey(role)
	var members [][]byte
	if _, err := m.get(key, &members); err != nil {
		return err
	}
	filtered := make([][]byte, 0, len(members))
	for _, existing := range members {
		if bytes.Equal(existing, addr[:]) {
			continue
		}
		filtered = append(filtered, existing)
	}
	if len(filtered) == len(members) {
		return nil
	}
	return m.put(key, filtered)
}

// HasRole reports whether the address is associated with the role. Errors
// while reading the underlying state read as false, matching the
// best-effort semantics the access gate requires.
func (m *Manager) HasRole(role string, addr [20]byte) bool {
	var members [][]byte
	ok, err := m.get(roleKey(role), &members)
	if err != nil || !ok {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr[:]) {
			return true
		}
	}
	return false
}

// IsOperator satisfies the vault's role registry collaborator.
func (m *Manager) IsOperator(addr [20]byte) bool {
	return m.HasRole(RoleOperator, addr)
}
