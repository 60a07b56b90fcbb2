// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package launch

import (
	"errors"
	"fmt"
)

// Error categories. Every concrete error below wraps exactly one of them, so
// callers can branch with errors.Is on the category.
var (
	ErrAuthorization      = errors.New("authorization")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrPolicyRejection    = errors.New("policy rejection")
)

// Authorization errors
var (
	ErrNotOwner   = fmt.Errorf("%w: caller is not the owner", ErrAuthorization)
	ErrNotCreator = fmt.Errorf("%w: caller is not the pool creator", ErrAuthorization)
)

// Invariant violations
var (
	ErrExemptionTooHigh     = fmt.Errorf("%w: fee exemption above maximum", ErrInvariantViolation)
	ErrInvalidPoolKey       = fmt.Errorf("%w: invalid pool key", ErrInvariantViolation)
	ErrMarketCapTooLow      = fmt.Errorf("%w: initial market cap below minimum", ErrInvariantViolation)
	ErrInvalidBps           = fmt.Errorf("%w: basis points above 10000", ErrInvariantViolation)
	ErrProtocolBpsTooHigh   = fmt.Errorf("%w: protocol share above ceiling", ErrInvariantViolation)
	ErrZeroRecipient        = fmt.Errorf("%w: zero recipient", ErrInvariantViolation)
	ErrCreatorFeeAlreadySet = fmt.Errorf("%w: creator fee already set", ErrInvariantViolation)
	ErrSupplyExceedsTotal   = fmt.Errorf("%w: fair launch supply exceeds total supply", ErrInvariantViolation)
	ErrZeroSupply           = fmt.Errorf("%w: zero total supply", ErrInvariantViolation)
	ErrTokenAlreadyLaunched = fmt.Errorf("%w: token already launched", ErrInvariantViolation)
	ErrDirectInitialize     = fmt.Errorf("%w: pools must be created through the launcher", ErrInvariantViolation)
)

// Policy rejections
var (
	ErrCannotSellDuringFairLaunch = fmt.Errorf("%w: cannot sell during fair launch", ErrPolicyRejection)
	ErrFairLaunchNotStarted       = fmt.Errorf("%w: fair launch has not started", ErrPolicyRejection)
	ErrUnknownPool                = fmt.Errorf("%w: pool was not launched here", ErrPolicyRejection)
)
