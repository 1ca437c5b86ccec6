// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package params

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/ava-labs/praos/codec"
	"github.com/ava-labs/praos/consts"

	safemath "github.com/ava-labs/avalanchego/utils/math"
)

type ConsensusVersion uint16

const (
	ConsensusBft          ConsensusVersion = 1
	ConsensusGenesisPraos ConsensusVersion = 2
)

func (c ConsensusVersion) String() string {
	switch c {
	case ConsensusBft:
		return "bft"
	case ConsensusGenesisPraos:
		return "genesis_praos"
	default:
		return fmt.Sprintf("consensus(%d)", uint16(c))
	}
}

func ParseConsensusVersion(s string) (ConsensusVersion, error) {
	switch s {
	case "bft":
		return ConsensusBft, nil
	case "genesis", "genesis_praos":
		return ConsensusGenesisPraos, nil
	default:
		return 0, fmt.Errorf("%w: consensus %q", ErrUnknownString, s)
	}
}

// Milli is a fixed point number in thousandths.
type Milli uint64

const MilliOne Milli = consts.MilliPerUnit

func (m Milli) Float64() float64 {
	return float64(m) / float64(consts.MilliPerUnit)
}

func (m Milli) String() string {
	return fmt.Sprintf("%d.%03d", m/MilliOne, m%MilliOne)
}

// ParseMilli reads a decimal such as "0.25" with at most three
// fractional digits.
func ParseMilli(s string) (Milli, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(s), ".")
	if len(frac) > 3 {
		return 0, fmt.Errorf("%w: %q has more than 3 decimals", ErrUnknownString, s)
	}
	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownString, s)
	}
	var f uint64
	if frac != "" {
		f, err = strconv.ParseUint(frac+strings.Repeat("0", 3-len(frac)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrUnknownString, s)
		}
	}
	m, err := safemath.Mul(w, uint64(MilliOne))
	if err != nil {
		return 0, err
	}
	m, err = safemath.Add(m, f)
	if err != nil {
		return 0, err
	}
	return Milli(m), nil
}

// MulDiv computes a*b/c without intermediate overflow.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, fmt.Errorf("%w: division by zero", ErrRatioOverflow)
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, ErrRatioOverflow
	}
	q, _ := bits.Div64(hi, lo, c)
	return q, nil
}

type Ratio struct {
	Numerator   uint64 `json:"numerator"   yaml:"numerator"`
	Denominator uint64 `json:"denominator" yaml:"denominator"`
}

func (r Ratio) Valid() bool {
	return r.Denominator != 0 && r.Numerator <= r.Denominator
}

func (r Ratio) marshal(p *codec.Packer) {
	p.PackUint64(r.Numerator)
	p.PackUint64(r.Denominator)
}

func unmarshalRatio(p *codec.Packer) Ratio {
	return Ratio{Numerator: p.UnpackUint64(false), Denominator: p.UnpackUint64(false)}
}

// TaxType describes how much of a reward is cut before it is passed on:
// first a fixed amount, then a ratio of what remains, the ratio part
// bounded by MaxLimit when MaxLimit is non-zero.
type TaxType struct {
	Fixed    uint64 `json:"fixed"    yaml:"fixed"`
	Ratio    Ratio  `json:"ratio"    yaml:"ratio"`
	MaxLimit uint64 `json:"maxLimit" yaml:"max_limit"`
}

const taxTypeLen = 4 * consts.Uint64Len

func ZeroTax() TaxType {
	return TaxType{Ratio: Ratio{Numerator: 0, Denominator: 1}}
}

// Cut returns the taxed amount and what is left of [value].
func (t TaxType) Cut(value uint64) (uint64, uint64, error) {
	fixed := min(value, t.Fixed)
	rest := value - fixed
	ratioPart, err := MulDiv(rest, t.Ratio.Numerator, t.Ratio.Denominator)
	if err != nil {
		return 0, 0, err
	}
	if t.MaxLimit != 0 && ratioPart > t.MaxLimit {
		ratioPart = t.MaxLimit
	}
	taxed := fixed + ratioPart
	return taxed, value - taxed, nil
}

func (t TaxType) Marshal(p *codec.Packer) {
	p.PackUint64(t.Fixed)
	t.Ratio.marshal(p)
	p.PackUint64(t.MaxLimit)
}

func UnmarshalTaxType(p *codec.Packer) (TaxType, error) {
	t := TaxType{
		Fixed: p.UnpackUint64(false),
		Ratio: unmarshalRatio(p),
	}
	t.MaxLimit = p.UnpackUint64(false)
	if err := p.Err(); err != nil {
		return TaxType{}, err
	}
	if !t.Ratio.Valid() {
		return TaxType{}, fmt.Errorf("%w: tax ratio %d/%d", ErrStructureInvalid, t.Ratio.Numerator, t.Ratio.Denominator)
	}
	return t, nil
}

type RewardKind uint8

const (
	RewardLinear  RewardKind = 1
	RewardHalving RewardKind = 2
)

// RewardParams is the per-epoch reward curve. Linear removes
// Ratio*zone from Constant; Halving multiplies Constant by Ratio^zone,
// where zone counts EpochRate-sized bands since EpochStart.
type RewardParams struct {
	Kind       RewardKind `json:"kind"`
	Constant   uint64     `json:"constant"`
	Ratio      Ratio      `json:"ratio"`
	EpochStart uint32     `json:"epochStart"`
	EpochRate  uint32     `json:"epochRate"`
}

const rewardParamsLen = consts.ByteLen + 3*consts.Uint64Len + 2*consts.Uint32Len

// Contribution returns how much may be drawn from the reward pot for
// [epoch].
func (r RewardParams) Contribution(epoch uint32) (uint64, error) {
	if epoch < r.EpochStart {
		return 0, nil
	}
	zone := uint64((epoch - r.EpochStart) / r.EpochRate)
	switch r.Kind {
	case RewardLinear:
		reduce, err := safemath.Mul(r.Ratio.Numerator, zone)
		if err != nil {
			return 0, nil
		}
		reduce /= r.Ratio.Denominator
		if reduce >= r.Constant {
			return 0, nil
		}
		return r.Constant - reduce, nil
	case RewardHalving:
		acc := r.Constant
		for i := uint64(0); i < zone && acc > 0; i++ {
			next, err := MulDiv(acc, r.Ratio.Numerator, r.Ratio.Denominator)
			if err != nil {
				return 0, err
			}
			acc = next
		}
		return acc, nil
	default:
		return 0, fmt.Errorf("%w: reward kind %d", ErrStructureInvalid, r.Kind)
	}
}

func (r RewardParams) marshal(p *codec.Packer) {
	p.PackByte(byte(r.Kind))
	p.PackUint64(r.Constant)
	r.Ratio.marshal(p)
	p.PackUint32(r.EpochStart)
	p.PackUint32(r.EpochRate)
}

func unmarshalRewardParams(p *codec.Packer) (RewardParams, error) {
	r := RewardParams{
		Kind:     RewardKind(p.UnpackByte()),
		Constant: p.UnpackUint64(false),
		Ratio:    unmarshalRatio(p),
	}
	r.EpochStart = p.UnpackUint32()
	r.EpochRate = p.UnpackUint32()
	if err := p.Err(); err != nil {
		return RewardParams{}, err
	}
	if r.Kind != RewardLinear && r.Kind != RewardHalving {
		return RewardParams{}, fmt.Errorf("%w: reward kind %d", ErrStructureInvalid, r.Kind)
	}
	if r.Ratio.Denominator == 0 || r.EpochRate == 0 {
		return RewardParams{}, fmt.Errorf("%w: reward params", ErrStructureInvalid)
	}
	if r.Kind == RewardHalving && !r.Ratio.Valid() {
		return RewardParams{}, fmt.Errorf("%w: halving ratio above one", ErrStructureInvalid)
	}
	return r, nil
}

// LinearFee is the fee a transaction must pay: Constant plus Coefficient
// per input and output, plus Certificate when it carries a certificate.
type LinearFee struct {
	Constant    uint64 `json:"constant"    yaml:"constant"`
	Coefficient uint64 `json:"coefficient" yaml:"coefficient"`
	Certificate uint64 `json:"certificate" yaml:"certificate"`
}

const linearFeeLen = 3 * consts.Uint64Len

func (f LinearFee) Calculate(hasCertificate bool, inputs, outputs int) (uint64, error) {
	io, err := safemath.Mul(f.Coefficient, uint64(inputs+outputs))
	if err != nil {
		return 0, err
	}
	fee, err := safemath.Add(f.Constant, io)
	if err != nil {
		return 0, err
	}
	if hasCertificate {
		return safemath.Add(fee, f.Certificate)
	}
	return fee, nil
}

type FeesGoTo uint8

const (
	FeesGoToRewards  FeesGoTo = 0
	FeesGoToTreasury FeesGoTo = 1
)

func ParseFeesGoTo(s string) (FeesGoTo, error) {
	switch s {
	case "", "rewards":
		return FeesGoToRewards, nil
	case "treasury":
		return FeesGoToTreasury, nil
	default:
		return 0, fmt.Errorf("%w: fees go to %q", ErrUnknownString, s)
	}
}
