// Package knx implements the parts of KNX group communication the test
// engine relies on: group and individual addresses, application-layer
// services and the telegram wire format.
package knx

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Address errors.
var (
	ErrInvalidGroupAddress      = errors.New("invalid group address")
	ErrInvalidIndividualAddress = errors.New("invalid individual address")
)

// GroupAddress is a three-level group address (main/middle/sub).
type GroupAddress struct {
	Main   uint8 // 0-31
	Middle uint8 // 0-7
	Sub    uint8 // 0-255
}

// ParseGroupAddress parses "main/middle/sub" or the two-level form
// "main/sub" (sub 0-2047).
func ParseGroupAddress(s string) (GroupAddress, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return GroupAddress{}, fmt.Errorf("%w: %q", ErrInvalidGroupAddress, s)
		}
		nums[i] = n
	}

	switch len(nums) {
	case 3:
		if nums[0] > 31 || nums[1] > 7 || nums[2] > 255 {
			return GroupAddress{}, fmt.Errorf("%w: %q out of range", ErrInvalidGroupAddress, s)
		}
		return GroupAddress{Main: uint8(nums[0]), Middle: uint8(nums[1]), Sub: uint8(nums[2])}, nil
	case 2:
		if nums[0] > 31 || nums[1] > 2047 {
			return GroupAddress{}, fmt.Errorf("%w: %q out of range", ErrInvalidGroupAddress, s)
		}
		return GroupAddressFromUint16(uint16(nums[0])<<11 | uint16(nums[1])), nil
	default:
		return GroupAddress{}, fmt.Errorf("%w: %q", ErrInvalidGroupAddress, s)
	}
}

// GroupAddressFromUint16 decodes the 16-bit bus representation.
func GroupAddressFromUint16(v uint16) GroupAddress {
	return GroupAddress{
		Main:   uint8(v >> 11 & 0x1F),
		Middle: uint8(v >> 8 & 0x07),
		Sub:    uint8(v),
	}
}

// Uint16 returns the 16-bit bus representation.
func (g GroupAddress) Uint16() uint16 {
	return uint16(g.Main&0x1F)<<11 | uint16(g.Middle&0x07)<<8 | uint16(g.Sub)
}

// String returns the three-level form.
func (g GroupAddress) String() string {
	return fmt.Sprintf("%d/%d/%d", g.Main, g.Middle, g.Sub)
}

// IndividualAddress identifies a device (area.line.device).
type IndividualAddress struct {
	Area   uint8 // 0-15
	Line   uint8 // 0-15
	Device uint8 // 0-255
}

// ParseIndividualAddress parses "area.line.device".
func ParseIndividualAddress(s string) (IndividualAddress, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return IndividualAddress{}, fmt.Errorf("%w: %q", ErrInvalidIndividualAddress, s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return IndividualAddress{}, fmt.Errorf("%w: %q", ErrInvalidIndividualAddress, s)
		}
		nums[i] = n
	}
	if nums[0] > 15 || nums[1] > 15 || nums[2] > 255 {
		return IndividualAddress{}, fmt.Errorf("%w: %q out of range", ErrInvalidIndividualAddress, s)
	}
	return IndividualAddress{Area: uint8(nums[0]), Line: uint8(nums[1]), Device: uint8(nums[2])}, nil
}

// IndividualAddressFromUint16 decodes the 16-bit bus representation.
func IndividualAddressFromUint16(v uint16) IndividualAddress {
	return IndividualAddress{
		Area:   uint8(v >> 12 & 0x0F),
		Line:   uint8(v >> 8 & 0x0F),
		Device: uint8(v),
	}
}

// Uint16 returns the 16-bit bus representation.
func (a IndividualAddress) Uint16() uint16 {
	return uint16(a.Area&0x0F)<<12 | uint16(a.Line&0x0F)<<8 | uint16(a.Device)
}

// String returns the dotted form.
func (a IndividualAddress) String() string {
	return fmt.Sprintf("%d.%d.%d", a.Area, a.Line, a.Device)
}
