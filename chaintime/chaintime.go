// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chaintime converts between wall-clock time, absolute slots
// and (epoch, slot) positions.
package chaintime

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrBeforeStart      = errors.New("time is before the start of the time frame")
	ErrBeforeEra        = errors.New("slot is before the start of the era")
	ErrZeroSlotDuration = errors.New("slot duration is zero")
	ErrZeroSlotsPerEra  = errors.New("slots per epoch is zero")
	ErrSlotOutOfEpoch   = errors.New("slot is past the end of the epoch")
)

// Slot is an absolute slot counted from the start of a TimeFrame.
type Slot uint64

// TimeFrame maps wall-clock time onto slots of a fixed duration.
type TimeFrame struct {
	start        time.Time
	slotDuration time.Duration
}

func NewTimeFrame(start time.Time, slotDuration time.Duration) (*TimeFrame, error) {
	if slotDuration <= 0 {
		return nil, ErrZeroSlotDuration
	}
	return &TimeFrame{start: start, slotDuration: slotDuration}, nil
}

func (tf *TimeFrame) Start() time.Time {
	return tf.start
}

func (tf *TimeFrame) SlotDuration() time.Duration {
	return tf.slotDuration
}

// SlotAt returns the slot [t] falls in.
func (tf *TimeFrame) SlotAt(t time.Time) (Slot, error) {
	if t.Before(tf.start) {
		return 0, fmt.Errorf("%w: %s < %s", ErrBeforeStart, t, tf.start)
	}
	return Slot(t.Sub(tf.start) / tf.slotDuration), nil
}

// SlotStart returns the wall-clock start of [slot].
func (tf *TimeFrame) SlotStart(slot Slot) time.Time {
	return tf.start.Add(time.Duration(slot) * tf.slotDuration)
}

// TimeEra maps absolute slots onto (epoch, slot) positions. An era begins
// at [epochStart] on absolute slot [slotStart] and every epoch in it has
// [slotsPerEpoch] slots.
type TimeEra struct {
	epochStart    uint32
	slotStart     Slot
	slotsPerEpoch uint32
}

func NewEra(slotStart Slot, epochStart uint32, slotsPerEpoch uint32) (*TimeEra, error) {
	if slotsPerEpoch == 0 {
		return nil, ErrZeroSlotsPerEra
	}
	return &TimeEra{
		epochStart:    epochStart,
		slotStart:     slotStart,
		slotsPerEpoch: slotsPerEpoch,
	}, nil
}

func (e *TimeEra) SlotsPerEpoch() uint32 {
	return e.slotsPerEpoch
}

// FromSlot returns the (epoch, slot) position of [slot].
func (e *TimeEra) FromSlot(slot Slot) (uint32, uint32, error) {
	if slot < e.slotStart {
		return 0, 0, ErrBeforeEra
	}
	rel := uint64(slot - e.slotStart)
	epoch := uint64(e.epochStart) + rel/uint64(e.slotsPerEpoch)
	return uint32(epoch), uint32(rel % uint64(e.slotsPerEpoch)), nil
}

// ToSlot returns the absolute slot of the (epoch, slot) position.
func (e *TimeEra) ToSlot(epoch uint32, slot uint32) (Slot, error) {
	if epoch < e.epochStart {
		return 0, ErrBeforeEra
	}
	if slot >= e.slotsPerEpoch {
		return 0, fmt.Errorf("%w: %d >= %d", ErrSlotOutOfEpoch, slot, e.slotsPerEpoch)
	}
	rel := uint64(epoch-e.epochStart)*uint64(e.slotsPerEpoch) + uint64(slot)
	return e.slotStart + Slot(rel), nil
}
