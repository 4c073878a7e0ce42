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
// Microslice descriptor wire format and the microslice handle returned by
// the consume path. The descriptor layout is bit identical to what the
// hardware emits into the descriptor buffer: 32 bytes, little endian.

package flib

import (
	"sync/atomic"
	"unsafe"
)

// descriptor header identification, hard coded in hardware
const (
	MS_HDR_ID  = 0xDD
	MS_HDR_VER = 0x01
)

// microslice status and error flags
const (
	MsFlagCrcValid     = 0x0001 // information in CRC field is valid
	MsFlagOverflowFlim = 0x0002 // truncated by FLIM
	MsFlagOverflowUser = 0x0004 // truncated by user logic
)

// subsystem identifiers
const (
	SubsysSTS       = 0x10 // Silicon Tracking System
	SubsysMVD       = 0x20 // Micro-Vertex Detector
	SubsysRICH      = 0x30 // Ring Imaging Cherenkov detector
	SubsysTRD       = 0x40 // Transition Radiation Detector
	SubsysMUCH      = 0x50 // Muon Chamber system
	SubsysRPC       = 0x60 // Resistive Plate Chambers
	SubsysECAL      = 0x70 // Electromagnetic Calorimeter
	SubsysPSD       = 0x80 // Projectile Spectator Detector
	SubsysTRB3      = 0xE0 // TRB3 stream
	SubsysHodoscope = 0xE1 // Fiber Hodoscope
	SubsysCherenkov = 0xE2
	SubsysLeadGlass = 0xE3 // Lead Glass Calorimeter
	SubsysFLES      = 0xF0 // First-level Event Selector pattern generators
)

// MicrosliceDescriptor matches the 32 byte descriptor record generated by
// the hardware.
type MicrosliceDescriptor struct {
	HdrID  uint8  // header format identifier (0xDD)
	HdrVer uint8  // header format version (0x01)
	EqID   uint16 // equipment identifier
	Flags  uint16 // status and error flags
	SysID  uint8  // subsystem identifier
	SysVer uint8  // subsystem format version
	Idx    uint64 // microslice index, counting from 1
	Crc    uint32 // CRC-32C of the data content
	Size   uint32 // content size in bytes
	Offset uint64 // byte offset into the event buffer
}

// atomicLoadUint64 performs a single full-width load of the 64 bit word at
// the start of b. The load must not be reordered, merged or elided; slots in
// the descriptor buffer are written by the FPGA without host coordination.
// b must be 8 byte aligned, which holds for all descriptor fields since the
// buffer mapping is page aligned and slots are 32 bytes.
func atomicLoadUint64(b []byte) uint64 {
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&b[0])))
}

// decodeDescriptor reads the descriptor slot starting at b as four 64 bit
// words, each with a single atomic load, and unpacks the fields.
func decodeDescriptor(b []byte) MicrosliceDescriptor {
	w0 := atomicLoadUint64(b[0:])
	w1 := atomicLoadUint64(b[8:])
	w2 := atomicLoadUint64(b[16:])
	w3 := atomicLoadUint64(b[24:])

	return MicrosliceDescriptor{
		HdrID:  uint8(w0),
		HdrVer: uint8(w0 >> 8),
		EqID:   uint16(w0 >> 16),
		Flags:  uint16(w0 >> 32),
		SysID:  uint8(w0 >> 48),
		SysVer: uint8(w0 >> 56),
		Idx:    w1,
		Crc:    uint32(w2),
		Size:   uint32(w2 >> 32),
		Offset: w3,
	}
}

// Microslice is the handle returned for a consumed microslice. It references
// the payload in place in the event buffer; the referenced region stays
// valid until the microslice is acknowledged and reclaimed by the hardware.
type Microslice struct {
	// Nr is the microslice index assigned by the hardware.
	Nr uint64

	// Desc is a snapshot of the descriptor at consumption time.
	Desc MicrosliceDescriptor

	ebuf   []byte // event buffer mapping
	offset uint64 // payload start, already reduced modulo the buffer size
}

// Size returns the payload size in bytes.
func (ms *Microslice) Size() uint32 {
	return ms.Desc.Size
}

// PayloadOffset returns the payload start offset within the event buffer.
func (ms *Microslice) PayloadOffset() uint64 {
	return ms.offset
}

// Payload returns the payload bytes. When the payload is contiguous in the
// event buffer the returned slice aliases the buffer mapping; when it wraps
// around the end of the buffer, the two segments are copied out. Long-lived
// references into the mapping must not be kept across an acknowledge.
func (ms *Microslice) Payload() []byte {
	size := uint64(ms.Desc.Size)
	bufSize := uint64(len(ms.ebuf))
	if ms.offset+size <= bufSize {
		return ms.ebuf[ms.offset : ms.offset+size]
	}

	// payload wraps around the end of the event buffer
	head := bufSize - ms.offset
	data := make([]byte, size)
	copy(data, ms.ebuf[ms.offset:])
	copy(data[head:], ms.ebuf[:size-head])
	return data
}
