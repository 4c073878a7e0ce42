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
// Tests for the window-scoped register bus accessor.

package flib

import (
	"testing"
)

func TestSysBusWindowing(t *testing.T) {
	rf := newFakeRegs()
	bus := &sysBus{regs: rf, base: 0x8000}

	bus.setReg(5, 0xCAFE)
	if got := rf.mem[0x8005]; got != 0xCAFE {
		t.Errorf("write landed at wrong address: mem[0x8005] = 0x%x", got)
	}
	if got := bus.getReg(5); got != 0xCAFE {
		t.Errorf("getReg = 0x%x, want 0xCAFE", got)
	}
}

func TestSysBusBlockAccess(t *testing.T) {
	rf := newFakeRegs()
	bus := &sysBus{regs: rf, base: 0x100}

	bus.setMem(0x20, []uint32{1, 2, 3})
	for i, want := range []uint32{1, 2, 3} {
		if got := rf.mem[0x120+uint32(i)]; got != want {
			t.Errorf("mem[0x%x] = %d, want %d", 0x120+i, got, want)
		}
	}

	got := bus.getMem(0x20, 3)
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("getMem = %v", got)
	}
}

func TestSysBusBitAccess(t *testing.T) {
	rf := newFakeRegs()
	bus := &sysBus{regs: rf, base: 0}

	rf.mem[7] = 0xF0
	bus.setBit(7, 0, true)
	if got := rf.mem[7]; got != 0xF1 {
		t.Errorf("set bit 0: mem = 0x%x, want 0xF1", got)
	}
	bus.setBit(7, 4, false)
	if got := rf.mem[7]; got != 0xE1 {
		t.Errorf("clear bit 4: mem = 0x%x, want 0xE1", got)
	}
	if !bus.getBit(7, 0) || bus.getBit(7, 4) {
		t.Error("getBit disagrees with register value")
	}
}

func TestSysBusGetReg64Retry(t *testing.T) {
	rf := newFakeRegs()
	bus := &sysBus{regs: rf, base: 0}

	// a carry propagates between the low and high read; the high word must
	// be re-read until stable
	rf.readSeq[1] = []uint32{0, 1, 1}          // high reads
	rf.readSeq[0] = []uint32{0xFFFFFFFF, 0x10} // low reads

	if got := bus.getReg64(0, 1); got != 0x1_0000_0010 {
		t.Errorf("getReg64 = 0x%x, want 0x100000010", got)
	}
}

func TestSysBusSetReg64(t *testing.T) {
	rf := newFakeRegs()
	bus := &sysBus{regs: rf, base: 0}

	bus.setReg64(4, 5, 0xAABBCCDD_11223344)
	if got := rf.mem[4]; got != 0x11223344 {
		t.Errorf("low word = 0x%x", got)
	}
	if got := rf.mem[5]; got != 0xAABBCCDD {
		t.Errorf("high word = 0x%x", got)
	}
}
