// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chaintime

import (
	"cmp"
	"fmt"
)

// BlockDate is the (epoch, slot) position of a block. Dates are ordered
// by epoch first and slot second.
type BlockDate struct {
	Epoch uint32 `json:"epoch" yaml:"epoch"`
	Slot  uint32 `json:"slot"  yaml:"slot"`
}

func (d BlockDate) Compare(o BlockDate) int {
	if c := cmp.Compare(d.Epoch, o.Epoch); c != 0 {
		return c
	}
	return cmp.Compare(d.Slot, o.Slot)
}

func (d BlockDate) Less(o BlockDate) bool {
	return d.Compare(o) < 0
}

// Next returns the following slot, wrapping into the next epoch once
// the epoch's slot count is reached.
func (d BlockDate) Next(era *TimeEra) BlockDate {
	if d.Slot+1 >= era.SlotsPerEpoch() {
		return BlockDate{Epoch: d.Epoch + 1}
	}
	return BlockDate{Epoch: d.Epoch, Slot: d.Slot + 1}
}

// FirstOfEpoch returns slot 0 of the epoch following [d].
func (d BlockDate) FirstOfEpoch() BlockDate {
	return BlockDate{Epoch: d.Epoch + 1}
}

func (d BlockDate) String() string {
	return fmt.Sprintf("%d.%d", d.Epoch, d.Slot)
}
