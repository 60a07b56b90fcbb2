// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"encoding/binary"
	"errors"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// HookFlags is the permission bitmap carried in the first two bytes of a hook
// address.
type HookFlags uint16

const (
	HookBeforeInitialize HookFlags = 1 << iota
	HookAfterInitialize
	HookBeforeAddLiquidity
	HookAfterAddLiquidity
	HookBeforeRemoveLiquidity
	HookAfterRemoveLiquidity
	HookBeforeSwap
	HookAfterSwap
	HookBeforeDonate
	HookAfterDonate
	HookBeforeSwapReturnsDelta
	HookAfterSwapReturnsDelta
)

// HookPermissions contains the flags derived from a hook address
type HookPermissions struct {
	BeforeInitialize       bool
	AfterInitialize        bool
	BeforeAddLiquidity     bool
	AfterAddLiquidity      bool
	BeforeRemoveLiquidity  bool
	AfterRemoveLiquidity   bool
	BeforeSwap             bool
	AfterSwap              bool
	BeforeDonate           bool
	AfterDonate            bool
	BeforeSwapReturnsDelta bool
	AfterSwapReturnsDelta  bool
}

// Hook errors
var (
	ErrHookInvalidAddress    = errors.New("hook address doesn't match capabilities")
	ErrHookMissingCallbacks  = errors.New("hook does not implement its permissions")
	ErrHookAlreadyRegistered = errors.New("hook already registered")
)

// Hooks is implemented by swap hooks. deltas returned by the hook are only
// honoured when the matching *ReturnsDelta permission is set.
type Hooks interface {
	// BeforeSwap may claim part of the swap before it reaches the curve.
	BeforeSwap(sender common.Address, key PoolKey, params SwapParams, hookData []byte) (BeforeSwapDelta, error)
	// AfterSwap sees the curve's delta and may claim an amount of the
	// unspecified currency. Positive = owed to the hook.
	AfterSwap(sender common.Address, key PoolKey, params SwapParams, delta BalanceDelta, hookData []byte) (*big.Int, error)
}

// InitializeHook is implemented by hooks that gate pool creation.
type InitializeHook interface {
	BeforeInitialize(sender common.Address, key PoolKey, sqrtPriceX96 *uint256.Int) error
}

// Checkpointer is implemented by hooks whose per-pool state must roll back
// together with the pool manager when a session fails. revert and commit are
// called at most once, after the session ends.
type Checkpointer interface {
	Checkpoint(id PoolID) (revert func(), commit func())
}

// ValidateHookAddress validates that a hook address encodes the claimed permissions
func ValidateHookAddress(addr common.Address, permissions HookPermissions) error {
	if HookFlags(binary.BigEndian.Uint16(addr[0:2])) != EncodeHookPermissions(permissions) {
		return ErrHookInvalidAddress
	}
	return nil
}

// EncodeHookPermissions encodes permissions into a HookFlags bitmap
func EncodeHookPermissions(p HookPermissions) HookFlags {
	var flags HookFlags
	set := func(on bool, f HookFlags) {
		if on {
			flags |= f
		}
	}
	set(p.BeforeInitialize, HookBeforeInitialize)
	set(p.AfterInitialize, HookAfterInitialize)
	set(p.BeforeAddLiquidity, HookBeforeAddLiquidity)
	set(p.AfterAddLiquidity, HookAfterAddLiquidity)
	set(p.BeforeRemoveLiquidity, HookBeforeRemoveLiquidity)
	set(p.AfterRemoveLiquidity, HookAfterRemoveLiquidity)
	set(p.BeforeSwap, HookBeforeSwap)
	set(p.AfterSwap, HookAfterSwap)
	set(p.BeforeDonate, HookBeforeDonate)
	set(p.AfterDonate, HookAfterDonate)
	set(p.BeforeSwapReturnsDelta, HookBeforeSwapReturnsDelta)
	set(p.AfterSwapReturnsDelta, HookAfterSwapReturnsDelta)
	return flags
}

// DecodeHookPermissions decodes a HookFlags bitmap into permissions
func DecodeHookPermissions(flags HookFlags) HookPermissions {
	return HookPermissions{
		BeforeInitialize:       flags&HookBeforeInitialize != 0,
		AfterInitialize:        flags&HookAfterInitialize != 0,
		BeforeAddLiquidity:     flags&HookBeforeAddLiquidity != 0,
		AfterAddLiquidity:      flags&HookAfterAddLiquidity != 0,
		BeforeRemoveLiquidity:  flags&HookBeforeRemoveLiquidity != 0,
		AfterRemoveLiquidity:   flags&HookAfterRemoveLiquidity != 0,
		BeforeSwap:             flags&HookBeforeSwap != 0,
		AfterSwap:              flags&HookAfterSwap != 0,
		BeforeDonate:           flags&HookBeforeDonate != 0,
		AfterDonate:            flags&HookAfterDonate != 0,
		BeforeSwapReturnsDelta: flags&HookBeforeSwapReturnsDelta != 0,
		AfterSwapReturnsDelta:  flags&HookAfterSwapReturnsDelta != 0,
	}
}

// HasPermission checks if an address has a specific hook permission
func HasPermission(addr common.Address, flag HookFlags) bool {
	return HookFlags(binary.BigEndian.Uint16(addr[0:2]))&flag != 0
}

// GenerateHookAddress derives a CREATE2-style hook address whose prefix
// carries the given permissions.
func GenerateHookAddress(deployer common.Address, salt [32]byte, permissions HookPermissions) common.Address {
	h := blake3.New()
	h.Write([]byte{0xff})
	h.Write(deployer.Bytes())
	h.Write(salt[:])

	var hash [32]byte
	h.Digest().Read(hash[:])

	var addr common.Address
	copy(addr[:], hash[12:32])
	binary.BigEndian.PutUint16(addr[0:2], uint16(EncodeHookPermissions(permissions)))
	return addr
}

// HookRegistry maps hook addresses to their implementations
type HookRegistry struct {
	mu    sync.RWMutex
	hooks map[common.Address]Hooks
}

// NewHookRegistry creates a new hook registry
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{hooks: make(map[common.Address]Hooks)}
}

// Register binds an implementation to its address after checking the address
// flags are backed by the implementation.
func (hr *HookRegistry) Register(addr common.Address, hooks Hooks) error {
	if addr == (common.Address{}) {
		return ErrHookInvalidAddress
	}
	if HasPermission(addr, HookBeforeInitialize) {
		if _, ok := hooks.(InitializeHook); !ok {
			return ErrHookMissingCallbacks
		}
	}
	if HasPermission(addr, HookBeforeSwapReturnsDelta) && !HasPermission(addr, HookBeforeSwap) ||
		HasPermission(addr, HookAfterSwapReturnsDelta) && !HasPermission(addr, HookAfterSwap) {
		return ErrHookInvalidAddress
	}

	hr.mu.Lock()
	defer hr.mu.Unlock()
	if _, ok := hr.hooks[addr]; ok {
		return ErrHookAlreadyRegistered
	}
	hr.hooks[addr] = hooks
	return nil
}

// Get returns the implementation registered at addr
func (hr *HookRegistry) Get(addr common.Address) (Hooks, bool) {
	hr.mu.RLock()
	defer hr.mu.RUnlock()
	h, ok := hr.hooks[addr]
	return h, ok
}
