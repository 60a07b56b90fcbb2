// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Router executes swaps and liquidity changes on behalf of end users: it
// opens a session, performs the operation as itself, then pulls what the user
// owes and pays out what the user is owed.
type Router struct {
	pm      *PoolManager
	address common.Address
}

// NewRouter creates a router acting from address
func NewRouter(pm *PoolManager, address common.Address) *Router {
	return &Router{pm: pm, address: address}
}

// Address returns the router's account
func (r *Router) Address() common.Address { return r.address }

// Swap swaps for user and settles the result against user's balances.
func (r *Router) Swap(user common.Address, key PoolKey, params SwapParams, hookData []byte) (BalanceDelta, error) {
	var result BalanceDelta
	err := r.pm.Unlock(r.address, func() error {
		delta, err := r.pm.Swap(r.address, key, params, hookData)
		if err != nil {
			return err
		}
		if err := r.settle(user, key.Currency0, delta.Amount0); err != nil {
			return err
		}
		if err := r.settle(user, key.Currency1, delta.Amount1); err != nil {
			return err
		}
		result = delta
		return nil
	})
	if err != nil {
		return ZeroBalanceDelta(), err
	}
	return result, nil
}

// ModifyLiquidity changes a router-held position funded by (or paid out to)
// user. Positions are keyed by the router with salt = user.
func (r *Router) ModifyLiquidity(user common.Address, key PoolKey, params ModifyLiquidityParams) (BalanceDelta, error) {
	params.Salt = UserSalt(user)
	var result BalanceDelta
	err := r.pm.Unlock(r.address, func() error {
		delta, err := r.pm.ModifyLiquidity(r.address, key, params)
		if err != nil {
			return err
		}
		if err := r.settle(user, key.Currency0, delta.Amount0); err != nil {
			return err
		}
		if err := r.settle(user, key.Currency1, delta.Amount1); err != nil {
			return err
		}
		result = delta
		return nil
	})
	if err != nil {
		return ZeroBalanceDelta(), err
	}
	return result, nil
}

// UserSalt returns the position salt the router uses for user
func UserSalt(user common.Address) [32]byte {
	return common.BytesToHash(user.Bytes())
}

func (r *Router) settle(user common.Address, currency Currency, delta *big.Int) error {
	switch delta.Sign() {
	case -1:
		owed := uint256.MustFromBig(new(big.Int).Neg(delta))
		if err := r.pm.Transfer(currency, user, r.address, owed); err != nil {
			return err
		}
		return r.pm.Settle(r.address, currency, owed)
	case 1:
		return r.pm.Take(r.address, currency, user, uint256.MustFromBig(delta))
	}
	return nil
}
