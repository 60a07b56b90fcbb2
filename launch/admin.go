// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package launch

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/launchmm/amm"
)

// Owner returns the current owner
func (h *Hook) Owner() common.Address {
	h.adminMu.RLock()
	defer h.adminMu.RUnlock()
	return h.owner
}

func (h *Hook) onlyOwner(caller common.Address) error {
	if caller != h.Owner() {
		return ErrNotOwner
	}
	return nil
}

func (h *Hook) onlyCreator(caller common.Address, id amm.PoolID) (LaunchInfo, error) {
	info, ok := h.Launch(id)
	if !ok {
		return LaunchInfo{}, ErrUnknownPool
	}
	if caller != info.Creator {
		return LaunchInfo{}, ErrNotCreator
	}
	return info, nil
}

// TransferOwnership hands the owner role to newOwner
func (h *Hook) TransferOwnership(caller, newOwner common.Address) error {
	if err := h.onlyOwner(caller); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return ErrZeroRecipient
	}
	h.adminMu.Lock()
	h.owner = newOwner
	h.adminMu.Unlock()
	h.log.Info("ownership transferred", "owner", newOwner.Hex())
	return nil
}

// SetProtocolRecipient changes who is credited the protocol share
func (h *Hook) SetProtocolRecipient(caller, recipient common.Address) error {
	if err := h.onlyOwner(caller); err != nil {
		return err
	}
	if recipient == (common.Address{}) {
		return ErrZeroRecipient
	}
	h.adminMu.Lock()
	h.admin.Protocol = recipient
	h.adminMu.Unlock()
	return nil
}

// SetDefaultPolicy replaces the fee policy of pools without an override
func (h *Hook) SetDefaultPolicy(caller common.Address, p FeePolicy) error {
	if err := h.onlyOwner(caller); err != nil {
		return err
	}
	if err := h.checkProtocolRecipient(p); err != nil {
		return err
	}
	return h.Fees.setDefaultPolicy(p)
}

// SetPoolPolicy overrides the fee policy of one pool. An inactive policy
// falls back to the default.
func (h *Hook) SetPoolPolicy(caller common.Address, id amm.PoolID, p FeePolicy) error {
	if err := h.onlyOwner(caller); err != nil {
		return err
	}
	if err := h.checkProtocolRecipient(p); err != nil {
		return err
	}
	return h.Fees.setPoolPolicy(id, p)
}

func (h *Hook) checkProtocolRecipient(p FeePolicy) error {
	h.adminMu.RLock()
	defer h.adminMu.RUnlock()
	if p.ProtocolBps > 0 && h.admin.Protocol == (common.Address{}) {
		return ErrZeroRecipient
	}
	return nil
}

// SetFeeExemption gives account a flat fee rate that applies when lower
// than the pool's.
func (h *Hook) SetFeeExemption(caller, account common.Address, feeBps uint32) error {
	if err := h.onlyOwner(caller); err != nil {
		return err
	}
	return h.Fees.setExemption(account, feeBps)
}

// RemoveFeeExemption drops account's exemption
func (h *Hook) RemoveFeeExemption(caller, account common.Address) error {
	if err := h.onlyOwner(caller); err != nil {
		return err
	}
	h.Fees.removeExemption(account)
	return nil
}

// SetFeeCalculator attaches c to every pool. nil detaches.
func (h *Hook) SetFeeCalculator(caller common.Address, c FeeCalculator) error {
	if err := h.onlyOwner(caller); err != nil {
		return err
	}
	h.Fees.setCalculator(c)
	return nil
}

// SetBidWallThreshold overrides the redeploy threshold of one pool. nil
// restores the default.
func (h *Hook) SetBidWallThreshold(caller common.Address, id amm.PoolID, policy ThresholdPolicy) error {
	if err := h.onlyOwner(caller); err != nil {
		return err
	}
	h.BidWall.setThreshold(id, policy)
	return nil
}

// AddSubscriber registers sub for events of every pool launched afterwards
func (h *Hook) AddSubscriber(caller common.Address, name string, sub Subscriber) error {
	if err := h.onlyOwner(caller); err != nil {
		return err
	}
	h.Notifier.Add(name, sub)
	return nil
}

// RemoveSubscriber unsubscribes sub from every launched pool
func (h *Hook) RemoveSubscriber(caller common.Address, name string) error {
	if err := h.onlyOwner(caller); err != nil {
		return err
	}
	h.Notifier.Remove(name, h.Pools())
	return nil
}

// SetCreatorFee sets the creator's share of a pool's fees. It can only be
// set once.
func (h *Hook) SetCreatorFee(caller common.Address, id amm.PoolID, bps uint32) error {
	if _, err := h.onlyCreator(caller, id); err != nil {
		return err
	}
	return h.Fees.setCreatorFee(id, bps)
}

// SetBidWallDisabled switches a pool's bid wall. Disabling closes the wall
// and sends its funds to the treasury; later bid wall shares go to the
// creator.
func (h *Hook) SetBidWallDisabled(caller common.Address, id amm.PoolID, disabled bool) error {
	info, err := h.onlyCreator(caller, id)
	if err != nil {
		return err
	}
	return h.engine.Unlock(h.cfg.Address, func() error {
		h.engine.Checkpoint(h, id)
		ps := h.pool(id)
		ps.mu.Lock()
		defer ps.mu.Unlock()

		if disabled && !h.BidWall.IsDisabled(id) {
			if err := h.BidWall.Close(info.Key, info.NativeIsZero); err != nil {
				return err
			}
		}
		h.BidWall.setDisabled(id, disabled)
		return nil
	})
}

// Withdraw pays caller everything escrowed for it in the native currency.
// With unwrap set a wrapped native is paid out as the native coin.
func (h *Hook) Withdraw(caller common.Address, unwrap bool) (*uint256.Int, error) {
	return h.claim(caller, h.cfg.Native, unwrap)
}

// ClaimReferral pays caller its escrowed referral fees in currency
func (h *Hook) ClaimReferral(caller common.Address, currency amm.Currency) (*uint256.Int, error) {
	return h.claim(caller, currency, false)
}

func (h *Hook) claim(caller common.Address, currency amm.Currency, unwrap bool) (*uint256.Int, error) {
	if caller == (common.Address{}) {
		return nil, ErrZeroRecipient
	}
	var paid *uint256.Int
	err := h.engine.Unlock(h.cfg.Address, func() error {
		// escrow is shared by all pools; the zero pool id checkpoints it alone
		h.engine.Checkpoint(h, amm.PoolID{})
		amount, err := h.Fees.withdraw(caller, currency, unwrap)
		if err != nil {
			return err
		}
		paid = amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}
