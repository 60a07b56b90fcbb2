// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads launch hook settings from a file, the environment
// and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/luxfi/launchmm/amm"
	"github.com/luxfi/launchmm/launch"
)

// EnvPrefix prefixes every environment override, e.g. LAUNCHMM_FEES_SWAP_BPS
const EnvPrefix = "LAUNCHMM"

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrMissingSetting = errors.New("missing setting")
)

// Settings is the raw configuration. Amounts are decimal strings in whole
// units of the native currency.
type Settings struct {
	HookAddress    string
	Native         string
	NativeDecimals int32

	FairLaunchWindow time.Duration
	MinMarketCap     string
	ReferralEscrow   bool

	// BidWallThreshold is the fixed redeploy threshold, or the floor when
	// BidWallDivisor is set.
	BidWallThreshold string
	BidWallDivisor   uint64
	BidWallCeiling   string

	Owner    string
	Protocol string

	SwapFeeBps      uint32
	ReferrerBps     uint32
	ProtocolBps     uint32
	MaxProtocolBps  uint32
	MaxExemptionBps uint32
}

// Load merges the config file, LAUNCHMM_ environment variables and flags.
// An empty cfgFile looks for launchmm.{yaml,json,toml} in the working
// directory and tolerates its absence.
func Load(cfgFile string, flags *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("native-decimals", 18)
	v.SetDefault("fair-launch.window", launch.DefaultFairLaunchWindow)
	v.SetDefault("fair-launch.min-market-cap", "0")
	v.SetDefault("referral-escrow", false)
	v.SetDefault("bid-wall.threshold", "0.001")
	v.SetDefault("bid-wall.divisor", uint64(0))
	v.SetDefault("bid-wall.ceiling", "0")
	v.SetDefault("fees.swap-bps", launch.DefaultSwapFeeBps)
	v.SetDefault("fees.referrer-bps", 0)
	v.SetDefault("fees.protocol-bps", launch.DefaultMaxProtocolBps)
	v.SetDefault("fees.max-protocol-bps", launch.DefaultMaxProtocolBps)
	v.SetDefault("fees.max-exemption-bps", launch.DefaultMaxExemptionBps)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Settings{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("launchmm")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Settings{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	s := Settings{
		HookAddress:      v.GetString("hook"),
		Native:           v.GetString("native"),
		NativeDecimals:   v.GetInt32("native-decimals"),
		FairLaunchWindow: v.GetDuration("fair-launch.window"),
		MinMarketCap:     v.GetString("fair-launch.min-market-cap"),
		ReferralEscrow:   v.GetBool("referral-escrow"),
		BidWallThreshold: v.GetString("bid-wall.threshold"),
		BidWallDivisor:   v.GetUint64("bid-wall.divisor"),
		BidWallCeiling:   v.GetString("bid-wall.ceiling"),
		Owner:            v.GetString("owner"),
		Protocol:         v.GetString("protocol"),
		SwapFeeBps:       v.GetUint32("fees.swap-bps"),
		ReferrerBps:      v.GetUint32("fees.referrer-bps"),
		ProtocolBps:      v.GetUint32("fees.protocol-bps"),
		MaxProtocolBps:   v.GetUint32("fees.max-protocol-bps"),
		MaxExemptionBps:  v.GetUint32("fees.max-exemption-bps"),
	}
	return s, nil
}

// Flags declares the command-line overrides Load understands
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("launchmm", pflag.ContinueOnError)
	fs.String("hook", "", "hook address")
	fs.String("native", "", "native currency address")
	fs.String("owner", "", "owner address")
	fs.String("protocol", "", "protocol fee recipient")
	fs.Bool("referral-escrow", false, "escrow referrer shares instead of paying them out")
	return fs
}

// Verify checks addresses, amounts and fee bounds
func (s Settings) Verify() error {
	if _, err := s.LaunchConfig(nil); err != nil {
		return err
	}
	admin, err := s.AdminConfig()
	if err != nil {
		return err
	}
	return admin.Verify()
}

// LaunchConfig builds the hook configuration. db may be nil for an
// in-memory escrow.
func (s Settings) LaunchConfig(db database.Database) (launch.Config, error) {
	hook, err := parseAddress("hook", s.HookAddress, true)
	if err != nil {
		return launch.Config{}, err
	}
	if err := amm.ValidateHookAddress(hook, launch.Permissions); err != nil {
		return launch.Config{}, fmt.Errorf("hook: %w", err)
	}
	native, err := parseAddress("native", s.Native, true)
	if err != nil {
		return launch.Config{}, err
	}

	cfg := launch.DefaultConfig(hook, amm.Currency{Address: native})
	cfg.ReferralEscrow = s.ReferralEscrow
	cfg.DB = db
	if s.FairLaunchWindow > 0 {
		cfg.FairLaunchWindow = s.FairLaunchWindow
	}
	if cfg.MinMarketCap, err = s.amount("fair-launch.min-market-cap", s.MinMarketCap); err != nil {
		return launch.Config{}, err
	}

	threshold, err := s.amount("bid-wall.threshold", s.BidWallThreshold)
	if err != nil {
		return launch.Config{}, err
	}
	if s.BidWallDivisor == 0 {
		cfg.BidWallThreshold = launch.FixedThreshold{Amount: threshold}
		return cfg, nil
	}
	ceiling, err := s.amount("bid-wall.ceiling", s.BidWallCeiling)
	if err != nil {
		return launch.Config{}, err
	}
	cfg.BidWallThreshold = launch.ScaledThreshold{Floor: threshold, Divisor: s.BidWallDivisor, Ceiling: ceiling}
	return cfg, nil
}

// AdminConfig builds the owner-managed settings
func (s Settings) AdminConfig() (launch.AdminConfig, error) {
	owner, err := parseAddress("owner", s.Owner, true)
	if err != nil {
		return launch.AdminConfig{}, err
	}
	protocol, err := parseAddress("protocol", s.Protocol, s.ProtocolBps > 0)
	if err != nil {
		return launch.AdminConfig{}, err
	}
	return launch.AdminConfig{
		Owner:    owner,
		Protocol: protocol,
		DefaultPolicy: launch.FeePolicy{
			SwapFeeBps:  s.SwapFeeBps,
			ReferrerBps: s.ReferrerBps,
			ProtocolBps: s.ProtocolBps,
			Active:      true,
		},
		MaxProtocolBps:  s.MaxProtocolBps,
		MaxExemptionBps: s.MaxExemptionBps,
	}, nil
}

// amount converts a whole-unit decimal string to base units
func (s Settings) amount(key, value string) (*uint256.Int, error) {
	if strings.TrimSpace(value) == "" {
		return new(uint256.Int), nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAmount, key, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, key)
	}
	scaled := d.Shift(s.NativeDecimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidAmount, key, s.NativeDecimals)
	}
	out, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("%w: %s overflows", ErrInvalidAmount, key)
	}
	return out, nil
}

func parseAddress(key, value string, required bool) (common.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		if required {
			return common.Address{}, fmt.Errorf("%w: %s", ErrMissingSetting, key)
		}
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %s=%q", ErrInvalidAddress, key, value)
	}
	return common.HexToAddress(value), nil
}
