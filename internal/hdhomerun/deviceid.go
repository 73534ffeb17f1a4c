// Package hdhomerun implements the HDHomeRun discovery surface spec §6
// requires: an SSDP M-SEARCH responder on UDP 1900 and the device id
// checksum scheme HDHomeRun-compatible clients (Plex among them)
// validate before treating a lineup as theirs.
package hdhomerun

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
)

// checksumLookup is the 16-entry nibble-substitution table spec §6 and
// §8 scenario 5 reference for the device id's low nibble.
var checksumLookup = [16]byte{0xA, 0x5, 0xF, 0x6, 0x7, 0xC, 0x1, 0xB, 0x9, 0x2, 0x8, 0xD, 0x4, 0x3, 0xE, 0x0}

// checksum computes the low-nibble checksum over the upper 7 nibbles
// of a device id.
func checksum(id uint32) byte {
	var c byte
	c ^= checksumLookup[(id>>28)&0xF]
	c ^= byte((id >> 24) & 0xF)
	c ^= checksumLookup[(id>>20)&0xF]
	c ^= byte((id >> 16) & 0xF)
	c ^= checksumLookup[(id>>12)&0xF]
	c ^= byte((id >> 8) & 0xF)
	c ^= checksumLookup[(id>>4)&0xF]
	return c
}

// ValidDeviceID reports whether id (an 8 hex-digit string) carries a
// correct checksum in its low nibble (spec §8 scenario 5:
// "1051ABCD" valid iff checksum(upper 7 nibbles) == 0xD).
func ValidDeviceID(id string) bool {
	if len(id) != 8 {
		return false
	}
	v, err := strconv.ParseUint(id, 16, 32)
	if err != nil {
		return false
	}
	n := uint32(v)
	return byte(n&0xF) == checksum(n)
}

// DeviceIDFromBase derives a valid 8 hex-digit device id from a 7 (or
// fewer) hex-digit base, left-padding with zeros and appending the
// computed checksum nibble.
func DeviceIDFromBase(base string) string {
	base = strings.ToUpper(strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
			return r
		default:
			return -1
		}
	}, base))
	if base == "" {
		return GenerateDeviceID()
	}
	if len(base) > 7 {
		base = base[:7]
	}
	base = fmt.Sprintf("%07s", base)
	v, err := strconv.ParseUint(base, 16, 32)
	if err != nil {
		return GenerateDeviceID()
	}
	shifted := uint32(v) << 4
	final := shifted | uint32(checksum(shifted))
	return fmt.Sprintf("%08X", final)
}

// GenerateDeviceID returns a fresh, checksum-valid device id in the
// "105X" tuner range HDHomeRun reserves, with 4 random trailing hex
// digits for the base.
func GenerateDeviceID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return DeviceIDFromBase("1050000")
	}
	suffix := fmt.Sprintf("%X", b[0]%16) + fmt.Sprintf("%X", b[1]%16) + fmt.Sprintf("%X", b[2]%16) + fmt.Sprintf("%X", b[3]%16)
	return DeviceIDFromBase("105" + suffix)
}
