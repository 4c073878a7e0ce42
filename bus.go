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
// Typed access to the FLIB register BAR. A RegisterFile is the raw 32 bit
// word interface to the mapped window; the hardware implementation is backed
// by a gopcie BAR mapping, tests substitute a simulated register file. A
// sysBus scopes a RegisterFile to a base offset and adds block, bit and
// 64 bit low/high accessors.

package flib

import (
	"github.com/aoeldemann/gopcie"
)

// RegisterFile is the raw access interface to a memory-mapped register
// window. Addresses are 32 bit word offsets. The mapping is assumed to be
// valid; access does not fail.
type RegisterFile interface {
	Read(addr uint32) uint32
	Write(addr uint32, data uint32)
}

// pcieBarRegisterFile adapts a gopcie BAR mapping to the RegisterFile
// interface. The BAR is byte addressed, the register file word addressed.
type pcieBarRegisterFile struct {
	bar *gopcie.PCIeBAR
}

func (rf *pcieBarRegisterFile) Read(addr uint32) uint32 {
	return rf.bar.Read(addr << 2)
}

func (rf *pcieBarRegisterFile) Write(addr uint32, data uint32) {
	rf.bar.Write(addr<<2, data)
}

// sysBus provides register access scoped to a base offset within a
// RegisterFile. Each link holds one sysBus for its packetizer window and one
// for its GTX window.
type sysBus struct {
	regs RegisterFile
	base uint32
}

// getReg reads a single 32 bit register.
func (bus *sysBus) getReg(addr uint32) uint32 {
	return bus.regs.Read(bus.base + addr)
}

// setReg writes a single 32 bit register.
func (bus *sysBus) setReg(addr uint32, data uint32) {
	bus.regs.Write(bus.base+addr, data)
}

// getMem reads a block of n consecutive 32 bit words. The read is not atomic
// with respect to concurrent device writes.
func (bus *sysBus) getMem(addr uint32, n int) []uint32 {
	data := make([]uint32, n)
	for i := range data {
		data[i] = bus.regs.Read(bus.base + addr + uint32(i))
	}
	return data
}

// setMem writes a block of consecutive 32 bit words. The write is not atomic
// with respect to concurrent device reads.
func (bus *sysBus) setMem(addr uint32, data []uint32) {
	for i, word := range data {
		bus.regs.Write(bus.base+addr+uint32(i), word)
	}
}

// getBit reads a single bit of a 32 bit register.
func (bus *sysBus) getBit(addr uint32, pos uint) bool {
	return bus.getReg(addr)&(1<<pos) != 0
}

// setBit sets or clears a single bit of a 32 bit register. This is a
// read-modify-write of the whole word; the caller must ensure no concurrent
// writer aliases the register.
func (bus *sysBus) setBit(addr uint32, pos uint, set bool) {
	reg := bus.getReg(addr)
	if set {
		bus.setReg(addr, reg|(1<<pos))
	} else {
		bus.setReg(addr, reg&^(1<<pos))
	}
}

// pulseBit generates a 1-0 edge on a single register bit. The hardware
// treats these bits as edge triggered; the two writes must stay adjacent.
func (bus *sysBus) pulseBit(addr uint32, pos uint) {
	reg := bus.getReg(addr)
	bus.setReg(addr, reg|(1<<pos))
	bus.setReg(addr, reg&^(1<<pos))
}

// getReg64 reads a 64 bit value from a low/high register pair. The two reads
// are not atomic; the high word is re-read until it is stable across the
// access so that a carry between the two reads cannot produce a torn value.
func (bus *sysBus) getReg64(addrL, addrH uint32) uint64 {
	high := bus.getReg(addrH)
	for {
		low := bus.getReg(addrL)
		again := bus.getReg(addrH)
		if again == high {
			return uint64(high)<<32 | uint64(low)
		}
		high = again
	}
}

// setReg64 writes a 64 bit value to a low/high register pair.
func (bus *sysBus) setReg64(addrL, addrH uint32, data uint64) {
	bus.setReg(addrL, uint32(data))
	bus.setReg(addrH, uint32(data>>32))
}
