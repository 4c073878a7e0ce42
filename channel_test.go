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
// Tests for the DMA channel register programming.

package flib

import (
	"testing"
)

func TestChannelConfigure(t *testing.T) {
	lnk, rf := newTestLink(t)

	// InitDMA already configured the channel; verify the programmed values
	if got := rf.mem[pktBase+REG_EBDM_BUFFER_SIZE_L]; got != 1<<testLogEbufSize {
		t.Errorf("EB buffer size = %d, want %d", got, 1<<testLogEbufSize)
	}
	if got := rf.mem[pktBase+REG_RBDM_BUFFER_SIZE_L]; got != 1<<testLogDbufSize {
		t.Errorf("RB buffer size = %d, want %d", got, 1<<testLogDbufSize)
	}
	if got := rf.mem[pktBase+REG_EBDM_N_SG_CONFIG]; got != 1 {
		t.Errorf("EB sg count = %d, want 1", got)
	}
	if got := rf.mem[pktBase+REG_RBDM_N_SG_CONFIG]; got != 1 {
		t.Errorf("RB sg count = %d, want 1", got)
	}

	ctrl := rf.mem[pktBase+REG_DMA_CTRL]
	if got := ctrl >> DMA_CTRL_PAYLOAD_SHIFT; got != DMA_MAX_PAYLOAD_WORDS {
		t.Errorf("payload words = %d, want %d", got, DMA_MAX_PAYLOAD_WORDS)
	}
	for _, bit := range []uint{DMA_CTRL_BIT_ENABLE, DMA_CTRL_BIT_EBDM_ENABLE,
		DMA_CTRL_BIT_RBDM_ENABLE} {
		if ctrl&(1<<bit) == 0 {
			t.Errorf("DMA_CTRL bit %d not enabled after init", bit)
		}
	}

	// both buffer mappings were zeroed for polling correctness
	for _, b := range lnk.Dbuf().Bytes()[:64] {
		if b != 0 {
			t.Fatal("descriptor buffer not zeroed")
		}
	}
}

func TestChannelOffsetReadback(t *testing.T) {
	lnk, _ := newTestLink(t)

	lnk.ch.setOffsets(0x1_0000_0800, 0x40)
	if got := lnk.ch.getEBOffset(); got != 0x1_0000_0800 {
		t.Errorf("EB offset readback = 0x%x", got)
	}
	if got := lnk.ch.getRBOffset(); got != 0x40 {
		t.Errorf("RB offset readback = 0x%x", got)
	}
}

func TestChannelBusyFlag(t *testing.T) {
	lnk, rf := newTestLink(t)

	if lnk.ch.getDMABusy() {
		t.Error("busy flag set on idle channel")
	}
	rf.mem[pktBase+REG_DMA_CTRL] |= 1 << DMA_CTRL_BIT_BUSY
	if !lnk.ch.getDMABusy() {
		t.Error("busy flag not observed")
	}
}

func TestChannelFpgaWritePointers(t *testing.T) {
	lnk, rf := newTestLink(t)

	rf.mem[pktBase+REG_EBDM_FPGA_WRITE_POINTER_L] = 0x800
	rf.mem[pktBase+REG_EBDM_FPGA_WRITE_POINTER_H] = 0x2
	rf.mem[pktBase+REG_RBDM_FPGA_WRITE_POINTER_L] = 0x40

	if got := lnk.ch.getEBDMAOffset(); got != 0x2_0000_0800 {
		t.Errorf("EB write pointer = 0x%x, want 0x200000800", got)
	}
	if got := lnk.ch.getRBDMAOffset(); got != 0x40 {
		t.Errorf("RB write pointer = 0x%x, want 0x40", got)
	}
}

func TestChannelDescCount(t *testing.T) {
	lnk, rf := newTestLink(t)

	rf.mem[pktBase+REG_DESC_CNT_L] = 0x1234
	rf.mem[pktBase+REG_DESC_CNT_H] = 0x1
	if got := lnk.ch.getDescCount(); got != 0x1_0000_1234 {
		t.Errorf("desc count = 0x%x", got)
	}
}
