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
// Per-link DMA channel. Configures the FPGA descriptor manager engines for
// the event buffer (EBDM) and the descriptor buffer (RBDM) and publishes the
// software read pointers that bound the hardware's reclaim window.

package flib

// dmaChannel drives the descriptor manager registers of one link. All
// operations are register backed; the channel is bound to the link's
// packetizer window.
type dmaChannel struct {
	bus *sysBus
}

// scatter-gather entry target selectors for REG_SGENTRY_CTRL
const (
	sgTargetEbdm = 0x0
	sgTargetRbdm = 0x1
	sgCtrlWrite  = 1 << 31
)

// prepareEB programs the event buffer descriptor manager with the buffer's
// scatter-gather list.
func (ch *dmaChannel) prepareEB(buf *DmaBuffer) {
	ch.writeSgList(buf, sgTargetEbdm)
	ch.bus.setReg(REG_EBDM_N_SG_CONFIG, uint32(buf.NumSgEntries()))
}

// prepareRB programs the descriptor buffer descriptor manager with the
// buffer's scatter-gather list.
func (ch *dmaChannel) prepareRB(buf *DmaBuffer) {
	ch.writeSgList(buf, sgTargetRbdm)
	ch.bus.setReg(REG_RBDM_N_SG_CONFIG, uint32(buf.NumSgEntries()))
}

func (ch *dmaChannel) writeSgList(buf *DmaBuffer, target uint32) {
	for i, entry := range buf.SgList() {
		ch.bus.setReg(REG_SGENTRY_ADDR_LOW, uint32(entry.Addr))
		ch.bus.setReg(REG_SGENTRY_ADDR_HIGH, uint32(entry.Addr>>32))
		ch.bus.setReg(REG_SGENTRY_LEN, uint32(entry.Len))
		ch.bus.setReg(REG_SGENTRY_CTRL, sgCtrlWrite|target<<16|uint32(i))
	}
}

// configureChannel writes the buffer sizes and the maximum DMA payload size.
func (ch *dmaChannel) configureChannel(ebuf, dbuf *DmaBuffer, maxPayloadWords uint32) {
	ch.bus.setReg64(REG_EBDM_BUFFER_SIZE_L, REG_EBDM_BUFFER_SIZE_H, ebuf.PhysSize())
	ch.bus.setReg64(REG_RBDM_BUFFER_SIZE_L, REG_RBDM_BUFFER_SIZE_H, dbuf.PhysSize())

	ctrl := ch.getDMAConfig()
	ctrl = ctrl&^uint32(0xFFFF<<DMA_CTRL_PAYLOAD_SHIFT) |
		maxPayloadWords<<DMA_CTRL_PAYLOAD_SHIFT
	ch.setDMAConfig(ctrl)
}

// setEnableEB enables or disables the event buffer descriptor manager.
func (ch *dmaChannel) setEnableEB(enable bool) {
	ch.bus.setBit(REG_DMA_CTRL, DMA_CTRL_BIT_EBDM_ENABLE, enable)
}

// setEnableRB enables or disables the descriptor buffer descriptor manager.
func (ch *dmaChannel) setEnableRB(enable bool) {
	ch.bus.setBit(REG_DMA_CTRL, DMA_CTRL_BIT_RBDM_ENABLE, enable)
}

// setDMAConfig writes the raw DMA control word.
func (ch *dmaChannel) setDMAConfig(mask uint32) {
	ch.bus.setReg(REG_DMA_CTRL, mask)
}

// getDMAConfig reads the raw DMA control word.
func (ch *dmaChannel) getDMAConfig() uint32 {
	return ch.bus.getReg(REG_DMA_CTRL)
}

// getDMABusy reports whether the DMA engine still has transfers in flight.
func (ch *dmaChannel) getDMABusy() bool {
	return ch.bus.getBit(REG_DMA_CTRL, DMA_CTRL_BIT_BUSY)
}

// setOffsets publishes the software read pointers for both buffers,
// advancing the hardware's window of acknowledged data. The trailing
// control word read flushes the posted writes so the pointer update is
// committed before any subsequent descriptor poll.
func (ch *dmaChannel) setOffsets(ebOffset, rbOffset uint64) {
	ch.bus.setReg64(REG_EBDM_SW_READ_POINTER_L, REG_EBDM_SW_READ_POINTER_H, ebOffset)
	ch.bus.setReg64(REG_RBDM_SW_READ_POINTER_L, REG_RBDM_SW_READ_POINTER_H, rbOffset)
	_ = ch.bus.getReg(REG_DMA_CTRL)
}

// getEBOffset reads back the published event buffer read pointer.
func (ch *dmaChannel) getEBOffset() uint64 {
	return ch.bus.getReg64(REG_EBDM_SW_READ_POINTER_L, REG_EBDM_SW_READ_POINTER_H)
}

// getRBOffset reads back the published descriptor buffer read pointer.
func (ch *dmaChannel) getRBOffset() uint64 {
	return ch.bus.getReg64(REG_RBDM_SW_READ_POINTER_L, REG_RBDM_SW_READ_POINTER_H)
}

// getEBDMAOffset reads the FPGA's event buffer write pointer.
func (ch *dmaChannel) getEBDMAOffset() uint64 {
	return ch.bus.getReg64(REG_EBDM_FPGA_WRITE_POINTER_L, REG_EBDM_FPGA_WRITE_POINTER_H)
}

// getRBDMAOffset reads the FPGA's descriptor buffer write pointer.
func (ch *dmaChannel) getRBDMAOffset() uint64 {
	return ch.bus.getReg64(REG_RBDM_FPGA_WRITE_POINTER_L, REG_RBDM_FPGA_WRITE_POINTER_H)
}

// getDescCount reads the number of descriptors the hardware has written
// since the channel was reset.
func (ch *dmaChannel) getDescCount() uint64 {
	return ch.bus.getReg64(REG_DESC_CNT_L, REG_DESC_CNT_H)
}
