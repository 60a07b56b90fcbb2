// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package launch

import (
	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
)

var referrerArgs = func() abi.Arguments {
	addressType, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Name: "referrer", Type: addressType}}
}()

// EncodeReferrer builds the hook data naming a trade's referrer
func EncodeReferrer(referrer common.Address) []byte {
	data, err := referrerArgs.Pack(referrer)
	if err != nil {
		return nil
	}
	return data
}

// DecodeReferrer reads the referrer from hook data. Empty, malformed or null
// referrers decode to false.
func DecodeReferrer(hookData []byte) (common.Address, bool) {
	if len(hookData) == 0 {
		return common.Address{}, false
	}
	values, err := referrerArgs.Unpack(hookData)
	if err != nil || len(values) != 1 {
		return common.Address{}, false
	}
	referrer, ok := values[0].(common.Address)
	if !ok || referrer == (common.Address{}) {
		return common.Address{}, false
	}
	return referrer, true
}
