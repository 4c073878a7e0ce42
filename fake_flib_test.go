// The MIT License
//
// Copyright (c) 2018-2019 by the author(s)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//
// Author(s):
//   - Dirk Hutter <hutter@compeng.uni-frankfurt.de>
//
// Description:
//
// Simulated register-and-buffer backend for driving the driver core in
// tests. The fake register file records every write so tests can assert on
// access sequences; the fake allocator hands out plain in-memory buffers
// and plays the part of the FPGA writing descriptors into them.

package flib

import (
	"encoding/binary"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/pkg/errors"
)

type regWrite struct {
	addr uint32
	data uint32
}

// fakeRegs is a RegisterFile backed by a plain map. Reads of scripted
// addresses pop from a per-address queue, everything else reads back the
// last written value.
type fakeRegs struct {
	mem     map[uint32]uint32
	writes  []regWrite
	readSeq map[uint32][]uint32
}

func newFakeRegs() *fakeRegs {
	return &fakeRegs{
		mem:     make(map[uint32]uint32),
		readSeq: make(map[uint32][]uint32),
	}
}

func (rf *fakeRegs) Read(addr uint32) uint32 {
	if seq, ok := rf.readSeq[addr]; ok && len(seq) > 0 {
		rf.readSeq[addr] = seq[1:]
		return seq[0]
	}
	return rf.mem[addr]
}

func (rf *fakeRegs) Write(addr uint32, data uint32) {
	rf.mem[addr] = data
	rf.writes = append(rf.writes, regWrite{addr: addr, data: data})
}

// writesSince returns all writes recorded after the given mark.
func (rf *fakeRegs) writesSince(mark int) []regWrite {
	return rf.writes[mark:]
}

// fakeAllocator hands out in-memory buffers. Allocations persist for the
// allocator lifetime, so id collisions behave like persistent buffers.
type fakeAllocator struct {
	bufs map[uint64]*DmaBuffer
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{bufs: make(map[uint64]*DmaBuffer)}
}

func (a *fakeAllocator) Allocate(id uint64, size uint64) (*DmaBuffer, error) {
	if _, ok := a.bufs[id]; ok {
		return nil, errors.Wrapf(ErrAlreadyExists, "buffer %d", id)
	}

	// back the buffer with []uint64 storage so the descriptor slots are
	// 8 byte aligned for the atomic loads of the consume path
	mem := uint64SliceBytes(make([]uint64, size/8))

	buf := &DmaBuffer{
		id:          id,
		mem:         mem,
		physSize:    size,
		mappingSize: size,
		sg:          []SgEntry{{Addr: 0, Len: size}},
		alloc:       a,
	}
	a.bufs[id] = buf
	return buf, nil
}

func (a *fakeAllocator) Connect(id uint64) (*DmaBuffer, error) {
	buf, ok := a.bufs[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "buffer %d", id)
	}
	return buf, nil
}

func (a *fakeAllocator) Deallocate(buf *DmaBuffer) error {
	return nil
}

// newTestFlib attaches a device struct with the given number of links to a
// fresh fake backend.
func newTestFlib(t *testing.T, nLinks int) (*Flib, *fakeRegs, *fakeAllocator) {
	t.Helper()

	rf := newFakeRegs()
	rf.mem[REG_HARDWARE_INFO] = HW_VERSION
	rf.mem[REG_N_CHANNELS] = uint32(nLinks)

	alloc := newFakeAllocator()
	flib, err := flibAttach(rf, alloc, 0)
	if err != nil {
		t.Fatalf("flibAttach: %v", err)
	}
	return flib, rf, alloc
}

// uint64SliceBytes returns an 8 byte aligned byte view of the given words.
func uint64SliceBytes(words []uint64) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*8)
}

// storeDescriptor writes a descriptor into a slot the way the hardware
// does: body first, idx word last with release semantics.
func storeDescriptor(db []byte, slot uint64, desc MicrosliceDescriptor) {
	base := slot * MICROSLICE_DESC_SIZE

	w0 := uint64(desc.HdrID) | uint64(desc.HdrVer)<<8 | uint64(desc.EqID)<<16 |
		uint64(desc.Flags)<<32 | uint64(desc.SysID)<<48 | uint64(desc.SysVer)<<56
	w2 := uint64(desc.Crc) | uint64(desc.Size)<<32

	binary.LittleEndian.PutUint64(db[base:], w0)
	binary.LittleEndian.PutUint64(db[base+16:], w2)
	binary.LittleEndian.PutUint64(db[base+24:], desc.Offset)
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&db[base+8])), desc.Idx)
}

// testDescriptor builds a valid descriptor with the given index, offset and
// size.
func testDescriptor(idx, offset uint64, size uint32) MicrosliceDescriptor {
	return MicrosliceDescriptor{
		HdrID:  MS_HDR_ID,
		HdrVer: MS_HDR_VER,
		EqID:   0xE003,
		Flags:  MsFlagCrcValid,
		SysID:  SubsysFLES,
		SysVer: 0x20,
		Idx:    idx,
		Crc:    0xdeadbeef,
		Size:   size,
		Offset: offset,
	}
}
