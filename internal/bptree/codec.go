package bptree

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// On-disk format: a header followed by linked leaf pages and, above
// them, one or more levels of interior pages with fixed fan-out. Offsets
// are byte offsets into the data file; offset 0 is reserved (the header
// occupies it) so it doubles as a "no next leaf" / "no child" sentinel.

const (
	magicData = 0x42505431 // "BPT1"
	dataVersion = 1

	leafFanout     = 128 // max entries per leaf page
	internalFanout = 64  // max children per interior page

	headerSize = 4 + 4 + 8 + 8 // magic, version, rootOffset, count
)

func encode(entries []Entry) ([]byte, error) {
	buf := make([]byte, headerSize)

	if len(entries) == 0 {
		// Single empty leaf as root.
		off := len(buf)
		buf = appendLeaf(buf, nil, 0)
		binary.BigEndian.PutUint32(buf[0:4], magicData)
		binary.BigEndian.PutUint32(buf[4:8], dataVersion)
		binary.BigEndian.PutUint64(buf[8:16], uint64(off))
		binary.BigEndian.PutUint64(buf[16:24], 0)
		return buf, nil
	}

	// Write leaves left to right; each knows the offset of the next one
	// because leaves are laid out consecutively.
	type leafMeta struct {
		offset   int
		firstKey uint32
	}
	var leaves []leafMeta
	chunks := chunk(len(entries), leafFanout)
	// First pass: compute each leaf's byte size so later leaves' offsets
	// (needed for nextLeafOffset links) are known before encoding.
	sizes := make([]int, len(chunks))
	for i, c := range chunks {
		sizes[i] = leafByteSize(entries[c.start:c.end])
	}
	offsets := make([]int, len(chunks))
	cursor := len(buf)
	for i := range chunks {
		offsets[i] = cursor
		cursor += sizes[i]
	}
	for i, c := range chunks {
		next := 0
		if i+1 < len(chunks) {
			next = offsets[i+1]
		}
		buf = appendLeaf(buf, entries[c.start:c.end], next)
		leaves = append(leaves, leafMeta{offset: offsets[i], firstKey: entries[c.start].Key})
	}

	// Build interior levels bottom-up until one node remains.
	type childRef struct {
		offset   int
		firstKey uint32
	}
	level := make([]childRef, len(leaves))
	for i, l := range leaves {
		level[i] = childRef{offset: l.offset, firstKey: l.firstKey}
	}
	for len(level) > 1 {
		groups := chunk(len(level), internalFanout)
		sizes := make([]int, len(groups))
		for i, g := range groups {
			sizes[i] = interiorByteSize(g.end - g.start)
		}
		base := len(buf)
		nodeOffsets := make([]int, len(groups))
		cur := base
		for i := range groups {
			nodeOffsets[i] = cur
			cur += sizes[i]
		}
		next := make([]childRef, len(groups))
		for i, g := range groups {
			children := level[g.start:g.end]
			childOffsets := make([]int, len(children))
			keys := make([]uint32, 0, len(children)-1)
			for j, c := range children {
				childOffsets[j] = c.offset
				if j > 0 {
					keys = append(keys, c.firstKey)
				}
			}
			buf = appendInterior(buf, keys, childOffsets)
			next[i] = childRef{offset: nodeOffsets[i], firstKey: children[0].firstKey}
		}
		level = next
	}

	root := level[0].offset
	binary.BigEndian.PutUint32(buf[0:4], magicData)
	binary.BigEndian.PutUint32(buf[4:8], dataVersion)
	binary.BigEndian.PutUint64(buf[8:16], uint64(root))
	binary.BigEndian.PutUint64(buf[16:24], uint64(len(entries)))
	return buf, nil
}

type rng struct{ start, end int }

func chunk(n, size int) []rng {
	var out []rng
	for i := 0; i < n; i += size {
		end := i + size
		if end > n {
			end = n
		}
		out = append(out, rng{start: i, end: end})
	}
	return out
}

func leafByteSize(entries []Entry) int {
	n := 1 + 2 + 8 // node kind byte (0 = leaf), numKeys, nextLeafOffset
	for _, e := range entries {
		n += 4 + 4 + len(e.Value) // key + valueLen + value
	}
	return n
}

func appendLeaf(buf []byte, entries []Entry, nextOffset int) []byte {
	buf = append(buf, 0) // node kind: 0 = leaf
	var numKeys [2]byte
	binary.BigEndian.PutUint16(numKeys[:], uint16(len(entries)))
	buf = append(buf, numKeys[:]...)
	var nextBuf [8]byte
	binary.BigEndian.PutUint64(nextBuf[:], uint64(nextOffset))
	buf = append(buf, nextBuf[:]...)
	for _, e := range entries {
		var kb [4]byte
		binary.BigEndian.PutUint32(kb[:], e.Key)
		buf = append(buf, kb[:]...)
		var lb [4]byte
		binary.BigEndian.PutUint32(lb[:], uint32(len(e.Value)))
		buf = append(buf, lb[:]...)
		buf = append(buf, e.Value...)
	}
	return buf
}

func interiorByteSize(numChildren int) int {
	numKeys := numChildren - 1
	return 1 + 2 + numKeys*4 + numChildren*8
}

func appendInterior(buf []byte, keys []uint32, childOffsets []int) []byte {
	buf = append(buf, 1) // node kind: 1 = interior
	var numKeys [2]byte
	binary.BigEndian.PutUint16(numKeys[:], uint16(len(keys)))
	buf = append(buf, numKeys[:]...)
	for _, k := range keys {
		var kb [4]byte
		binary.BigEndian.PutUint32(kb[:], k)
		buf = append(buf, kb[:]...)
	}
	for _, off := range childOffsets {
		var ob [8]byte
		binary.BigEndian.PutUint64(ob[:], uint64(off))
		buf = append(buf, ob[:]...)
	}
	return buf
}

// decode walks the page structure starting at the root and follows the
// leftmost path down to the first leaf, then the leaf chain, collecting
// every entry in ascending key order.
func decode(data []byte) ([]Entry, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("bptree: data file too short")
	}
	if binary.BigEndian.Uint32(data[0:4]) != magicData {
		return nil, fmt.Errorf("bptree: bad magic")
	}
	root := int(binary.BigEndian.Uint64(data[8:16]))
	count := int(binary.BigEndian.Uint64(data[16:24]))

	leafOffset, err := leftmostLeaf(data, root)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, count)
	for {
		if leafOffset >= len(data) {
			return nil, fmt.Errorf("bptree: leaf offset out of range")
		}
		es, next, err := readLeaf(data, leafOffset)
		if err != nil {
			return nil, err
		}
		entries = append(entries, es...)
		if next == 0 {
			break
		}
		leafOffset = next
	}
	return entries, nil
}

func leftmostLeaf(data []byte, offset int) (int, error) {
	for {
		if offset+1 > len(data) {
			return 0, fmt.Errorf("bptree: node offset out of range")
		}
		isLeaf := data[offset] == 0
		if isLeaf {
			return offset, nil
		}
		numKeys := int(binary.BigEndian.Uint16(data[offset+1 : offset+3]))
		childStart := offset + 3 + numKeys*4
		if childStart+8 > len(data) {
			return 0, fmt.Errorf("bptree: interior node truncated")
		}
		offset = int(binary.BigEndian.Uint64(data[childStart : childStart+8]))
	}
}

func readLeaf(data []byte, offset int) ([]Entry, int, error) {
	if data[offset] != 0 {
		return nil, 0, fmt.Errorf("bptree: expected leaf at offset %d", offset)
	}
	numKeys := int(binary.BigEndian.Uint16(data[offset+1 : offset+3]))
	next := int(binary.BigEndian.Uint64(data[offset+3 : offset+11]))
	pos := offset + 11
	out := make([]Entry, 0, numKeys)
	for i := 0; i < numKeys; i++ {
		if pos+8 > len(data) {
			return nil, 0, fmt.Errorf("bptree: leaf entry truncated")
		}
		key := binary.BigEndian.Uint32(data[pos : pos+4])
		vlen := int(binary.BigEndian.Uint32(data[pos+4 : pos+8]))
		pos += 8
		if pos+vlen > len(data) {
			return nil, 0, fmt.Errorf("bptree: leaf value truncated")
		}
		val := append([]byte(nil), data[pos:pos+vlen]...)
		pos += vlen
		out = append(out, Entry{Key: key, Value: val})
	}
	return out, next, nil
}

// Sibling index file: magic, version, count, data length, crc32(data).
const (
	magicIndex   = 0x42504958 // "BPIX"
	indexVersion = 1
)

func encodeIndex(data []byte, count int) []byte {
	buf := make([]byte, 4+4+8+8+4)
	binary.BigEndian.PutUint32(buf[0:4], magicIndex)
	binary.BigEndian.PutUint32(buf[4:8], indexVersion)
	binary.BigEndian.PutUint64(buf[8:16], uint64(count))
	binary.BigEndian.PutUint64(buf[16:24], uint64(len(data)))
	binary.BigEndian.PutUint32(buf[24:28], crc32.ChecksumIEEE(data))
	return buf
}

func verifyIndex(idx, data []byte) (count int, ok bool) {
	if len(idx) != 28 {
		return 0, false
	}
	if binary.BigEndian.Uint32(idx[0:4]) != magicIndex {
		return 0, false
	}
	if binary.BigEndian.Uint32(idx[4:8]) != indexVersion {
		return 0, false
	}
	wantCount := int(binary.BigEndian.Uint64(idx[8:16]))
	wantLen := int(binary.BigEndian.Uint64(idx[16:24]))
	wantCRC := binary.BigEndian.Uint32(idx[24:28])
	if wantLen != len(data) {
		return 0, false
	}
	if crc32.ChecksumIEEE(data) != wantCRC {
		return 0, false
	}
	return wantCount, true
}
