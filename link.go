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
// This file implements the Link struct, the per-link state of the FLIB. A
// link owns its DMA channel and its two ring buffers (event buffer for the
// payload, descriptor buffer for the 32 byte microslice descriptors) and
// implements the consume/acknowledge protocol over the ring pair:
//
//  ------------       ------------       -------------------
// | front-end  | --> | packetizer | --> | EB / DB ring pair |
// | (sel. src) |     | (+ GTX if) |     | in host memory    |
//  ------------       ------------       -------------------
//
// The FPGA publishes a microslice by writing its descriptor into the next
// descriptor buffer slot; the consumer polls the slot, hands out a handle
// and later acknowledges consumption, which advances the software read
// pointers via the DMA channel.

package flib

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// DataSource selects the per-link data path input.
type DataSource uint32

// data source encodings in REG_GTX_DATAPATH_CFG bits [1:0]
const (
	DataSourceDisable DataSource = 0x0
	DataSourceEmu     DataSource = 0x1
	DataSourceLink    DataSource = 0x2
	DataSourcePgen    DataSource = 0x3
)

func (src DataSource) String() string {
	switch src {
	case DataSourceDisable:
		return "disable"
	case DataSourceEmu:
		return "emu"
	case DataSourceLink:
		return "link"
	case DataSourcePgen:
		return "pgen"
	}
	return fmt.Sprintf("unknown(%d)", uint32(src))
}

// DmaInitMode selects how the ring buffers are obtained during DMA
// initialization.
type DmaInitMode int

const (
	// DmaCreateOnly allocates fresh buffers and fails if buffers with the
	// link's ids already exist.
	DmaCreateOnly DmaInitMode = iota
	// DmaOpenOnly attaches to existing buffers and fails if none exist.
	DmaOpenOnly
	// DmaOpenOrCreate attaches to existing buffers and allocates fresh
	// ones if none exist.
	DmaOpenOrCreate
)

// HdrConfig is the header template applied to pattern generated
// microslices.
type HdrConfig struct {
	EqID   uint16 // equipment identifier
	SysID  uint8  // subsystem identifier
	SysVer uint8  // subsystem format version
}

// CtrlMsg is a CBMnet control message: 4 to 32 data words of 16 bit each.
type CtrlMsg struct {
	Words uint32
	Data  [CTRL_MSG_WORDS_MAX]uint16
}

// LinkPerf is a snapshot of the per-link performance counter group. The
// hardware latches all counters at the measurement interval boundary, so
// the group is consistent in itself.
type LinkPerf struct {
	PktCycleCnt  uint64 // packetizer clock cycles in the interval
	DmaStall     uint64 // cycles stalled by the DMA mux
	DataBufStall uint64 // cycles stalled by a full event buffer
	DescBufStall uint64 // cycles stalled by a full descriptor buffer
	Events       uint64 // microslices processed
	GtxCycleCnt  uint64 // GTX clock cycles in the interval
	DinFullGtx   uint64 // GTX cycles with back pressure to the link
}

// LinkStatus is a snapshot of the per-link status bits.
type LinkStatus struct {
	ChannelUp       bool
	HardErr         bool
	SoftErr         bool
	EoeFifoOverflow bool
	DFifoOverflow   bool
	DFifoMaxWords   uint32
}

// Link is the struct providing methods for configuring one FLIB link and
// for consuming the microslices it delivers. A Link is exclusively owned by
// its Flib; concurrent access from multiple goroutines is not supported.
type Link struct {
	flib *Flib
	id   int

	pkt *sysBus // packetizer register window
	gtx *sysBus // GTX register window
	ch  *dmaChannel

	ebuf *DmaBuffer // event buffer (payload)
	dbuf *DmaBuffer // descriptor buffer

	logEbufSize uint
	logDbufSize uint
	dbEntries   uint64

	// ring cursor state
	index     uint64 // next descriptor slot to inspect
	lastIndex uint64 // slot of the most recently returned descriptor
	lastAcked uint64 // slot most recently acknowledged to the FPGA
	mcNr      uint64 // highest microslice index returned so far
	wrap      uint64 // descriptor cursor wrap count

	lastDesc       MicrosliceDescriptor // descriptor at lastIndex
	ackPending     bool
	dmaInitialized bool
}

// linkCreate binds a link to its channel windows. No hardware
// initialization is done here.
func linkCreate(flib *Flib, id int) *Link {
	base := uint32(id+1) * CHANNEL_OFFSET
	pkt := &sysBus{regs: flib.regs, base: base}
	gtx := &sysBus{regs: flib.regs, base: base + 1<<GTX_WINDOW_SHIFT}
	return &Link{
		flib: flib,
		id:   id,
		pkt:  pkt,
		gtx:  gtx,
		ch:   &dmaChannel{bus: pkt},
	}
}

// ID returns the link index within its FLIB.
func (lnk *Link) ID() int {
	return lnk.id
}

///// DMA initialization and teardown /////

// InitDMA obtains the event and descriptor buffers according to the given
// mode and initializes the hardware for DMA transfers. The buffer sizes are
// given as log2 of the byte count; the descriptor buffer size must be a
// multiple of the descriptor size, which every power of two >= 5 satisfies.
func (lnk *Link) InitDMA(mode DmaInitMode, logEbufSize, logDbufSize uint) error {
	if lnk.dmaInitialized {
		return errors.New("DMA already initialized")
	}
	if logDbufSize < 5 {
		return errors.Errorf("descriptor buffer size 2^%d below descriptor size",
			logDbufSize)
	}

	lnk.logEbufSize = logEbufSize
	lnk.logDbufSize = logDbufSize

	var err error
	if lnk.ebuf, err = lnk.obtainBuffer(mode, 0, logEbufSize); err != nil {
		return err
	}
	if lnk.dbuf, err = lnk.obtainBuffer(mode, 1, logDbufSize); err != nil {
		return err
	}

	lnk.initHardware()
	lnk.dmaInitialized = true

	Log(LOG_DEBUG, "link %d: DMA initialized", lnk.id)
	LogIncrementIndentLevel()
	Log(LOG_DEBUG, "ebuf %s", lnk.ebuf.Info())
	Log(LOG_DEBUG, "dbuf %s", lnk.dbuf.Info())
	LogDecrementIndentLevel()

	return nil
}

// obtainBuffer creates or opens one of the link's buffers. Buffer ids are
// assigned as 2*link_index for the event buffer and 2*link_index+1 for the
// descriptor buffer.
func (lnk *Link) obtainBuffer(mode DmaInitMode, idx uint64, logSize uint) (*DmaBuffer, error) {
	alloc := lnk.flib.alloc
	id := 2*uint64(lnk.id) + idx
	size := uint64(1) << logSize

	switch mode {
	case DmaCreateOnly:
		buf, err := alloc.Allocate(id, size)
		return buf, errors.WithMessagef(err, "link %d", lnk.id)
	case DmaOpenOnly:
		buf, err := alloc.Connect(id)
		return buf, errors.WithMessagef(err, "link %d", lnk.id)
	case DmaOpenOrCreate:
		buf, err := alloc.Allocate(id, size)
		if errors.Is(err, ErrAlreadyExists) {
			buf, err = alloc.Connect(id)
		}
		return buf, errors.WithMessagef(err, "link %d", lnk.id)
	}
	return nil, errors.Errorf("link %d: invalid DMA init mode %d", lnk.id, mode)
}

// initHardware initializes the hardware to perform DMA transfers.
func (lnk *Link) initHardware() {
	// disable packer if still enabled
	lnk.EnableCbmnetPacker(false)
	// reset everything to ensure clean startup
	lnk.rstChannel()
	lnk.SetStartIdx(1)

	// prepare the descriptor manager engines with the scatter-gather lists
	lnk.ch.prepareEB(lnk.ebuf)
	lnk.ch.prepareRB(lnk.dbuf)
	lnk.ch.configureChannel(lnk.ebuf, lnk.dbuf, DMA_MAX_PAYLOAD_WORDS)

	// clear both mappings. the consumer detects fresh descriptors by their
	// idx value, so the descriptor buffer must start out zeroed
	clearBytes(lnk.ebuf.Bytes())
	clearBytes(lnk.dbuf.Bytes())

	lnk.dbEntries = lnk.dbuf.MaxRbEntries()

	// enable descriptor manager engines and the DMA engine
	lnk.ch.setEnableEB(true)
	lnk.ch.setEnableRB(true)
	lnk.ch.setDMAConfig(lnk.ch.getDMAConfig() | 1<<DMA_CTRL_BIT_ENABLE)
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// rstChannel resets the datapath and the packetizer FIFOs. The datapath
// reset also zeroes the pending microslice counter; the FPGA write pointers
// are left unchanged.
func (lnk *Link) rstChannel() {
	lnk.gtx.setBit(REG_GTX_DATAPATH_CFG, DATAPATH_CFG_BIT_RST, true)
	lnk.ch.setDMAConfig(1 << DMA_CTRL_BIT_FIFO_RST)
	lnk.gtx.setBit(REG_GTX_DATAPATH_CFG, DATAPATH_CFG_BIT_RST, false)
}

// Stop disables the data path, waits for pending DMA transfers to complete
// and resets the channel. The busy-wait is bounded; on timeout the teardown
// proceeds with a best-effort reset.
func (lnk *Link) Stop() {
	if !lnk.dmaInitialized {
		return
	}

	lnk.EnableCbmnetPacker(false)
	lnk.ch.setEnableEB(false)

	deadline := time.Now().Add(DMA_BUSY_WAIT_TIMEOUT)
	for lnk.ch.getDMABusy() {
		if time.Now().After(deadline) {
			Log(LOG_WARN, "link %d: DMA still busy after %v "+
				"(eb wr 0x%x, rb wr 0x%x), resetting anyway",
				lnk.id, DMA_BUSY_WAIT_TIMEOUT,
				lnk.ch.getEBDMAOffset(), lnk.ch.getRBDMAOffset())
			break
		}
		time.Sleep(DMA_BUSY_POLL_PERIOD)
	}

	lnk.ch.setEnableRB(false)
	lnk.rstChannel()
	lnk.dmaInitialized = false
}

// closeBuffers releases the link's buffers with the allocator. Deallocation
// failure is fatal for the owning device teardown and surfaced to the
// caller.
func (lnk *Link) closeBuffers() error {
	if lnk.ebuf != nil {
		if err := lnk.ebuf.deallocate(); err != nil {
			return err
		}
		lnk.ebuf = nil
	}
	if lnk.dbuf != nil {
		if err := lnk.dbuf.deallocate(); err != nil {
			return err
		}
		lnk.dbuf = nil
	}
	return nil
}

///// microslice access /////

// GetMicroslice polls the current descriptor slot and returns a handle for
// the next microslice if the hardware has published one. The second return
// value reports whether a microslice was available; when it is false no
// cursor state has been modified.
func (lnk *Link) GetMicroslice() (*Microslice, bool) {
	desc, ok := lnk.readDescriptor(lnk.index)
	if !ok {
		return nil, false
	}

	if desc.HdrID != MS_HDR_ID {
		// impossible unless the ring protocol derailed; tear down rather
		// than handing out garbage payload references
		lnk.Stop()
		Log(LOG_ERR, "link %d: descriptor slot %d carries header id 0x%02x, "+
			"expected 0x%02x", lnk.id, lnk.index, desc.HdrID, MS_HDR_ID)
	}

	lnk.mcNr = desc.Idx
	ms := &Microslice{
		Nr:     desc.Idx,
		Desc:   desc,
		ebuf:   lnk.ebuf.Bytes(),
		offset: desc.Offset & (1<<lnk.logEbufSize - 1),
	}

	lnk.lastIndex = lnk.index
	lnk.lastDesc = desc
	lnk.ackPending = true
	if lnk.index < lnk.dbEntries-1 {
		lnk.index++
	} else {
		lnk.index = 0
		lnk.wrap++
	}

	return ms, true
}

// readDescriptor loads the descriptor in the given slot if it carries a
// microslice index beyond the last one returned. The idx word is loaded
// first; the body is only valid if idx is unchanged when re-read after the
// decode, otherwise the hardware was still writing the slot and the read is
// retried.
func (lnk *Link) readDescriptor(slot uint64) (MicrosliceDescriptor, bool) {
	db := lnk.dbuf.Bytes()
	base := slot * MICROSLICE_DESC_SIZE

	for attempt := 0; attempt < DESC_READ_RETRIES; attempt++ {
		idx := atomicLoadUint64(db[base+8:])
		if idx <= lnk.mcNr {
			// no new microslice published in this slot
			return MicrosliceDescriptor{}, false
		}

		desc := decodeDescriptor(db[base : base+MICROSLICE_DESC_SIZE])
		if atomicLoadUint64(db[base+8:]) == idx {
			desc.Idx = idx
			return desc, true
		}
	}

	// slot kept moving under us; treat as not yet published and let the
	// next poll pick it up
	return MicrosliceDescriptor{}, false
}

// AckMicroslice acknowledges the most recently returned microslice,
// publishing both read pointers to the hardware. Acknowledgements may be
// batched: acknowledging only every k-th microslice keeps up to k slots
// additionally occupied. Calling AckMicroslice without a new microslice
// since the previous acknowledge is refused.
func (lnk *Link) AckMicroslice() error {
	if !lnk.ackPending {
		return errors.New("no unacknowledged microslice")
	}

	ebOffset := lnk.lastDesc.Offset & (1<<lnk.logEbufSize - 1)
	rbOffset := lnk.lastIndex * MICROSLICE_DESC_SIZE & (1<<lnk.logDbufSize - 1)
	lnk.ch.setOffsets(ebOffset, rbOffset)

	lnk.lastAcked = lnk.lastIndex
	lnk.ackPending = false
	return nil
}

///// configuration and control /////

// SetStartIdx programs the microslice start index and pulses the set-start
// bit. Re-entrant; the pulse is edge triggered in hardware.
func (lnk *Link) SetStartIdx(index uint64) {
	lnk.gtx.setReg64(REG_GTX_MC_GEN_CFG_IDX_L, REG_GTX_MC_GEN_CFG_IDX_H, index)
	lnk.gtx.pulseBit(REG_GTX_MC_GEN_CFG, MC_GEN_CFG_BIT_SET_START_IDX)
}

// RstPendingMc zeroes the pending microslice counter. The counter is also
// reset by a datapath reset.
func (lnk *Link) RstPendingMc() {
	lnk.gtx.pulseBit(REG_GTX_MC_GEN_CFG, MC_GEN_CFG_BIT_RST_PENDING_MC)
}

// EnableCbmnetPacker enables or disables the microslice packer.
func (lnk *Link) EnableCbmnetPacker(enable bool) {
	lnk.gtx.setBit(REG_GTX_MC_GEN_CFG, MC_GEN_CFG_BIT_PACKER_ENABLE, enable)
}

// GetPendingMc returns the number of microslices accepted by the packer but
// not yet fully transferred to host memory.
func (lnk *Link) GetPendingMc() uint64 {
	return lnk.gtx.getReg64(REG_GTX_PENDING_MC_L, REG_GTX_PENDING_MC_H)
}

// GetMcIndex returns the current microslice index of the packer.
func (lnk *Link) GetMcIndex() uint64 {
	return lnk.gtx.getReg64(REG_GTX_MC_INDEX_L, REG_GTX_MC_INDEX_H)
}

// SetDataSel selects the link's data source. The switch is immediate;
// downstream buffers may contain a partial microslice at the switch
// boundary, so callers are expected to reset the datapath after switching.
func (lnk *Link) SetDataSel(src DataSource) {
	cfg := lnk.gtx.getReg(REG_GTX_DATAPATH_CFG)
	cfg = cfg&^uint32(DATAPATH_CFG_RX_SEL_MASK) | uint32(src)
	lnk.gtx.setReg(REG_GTX_DATAPATH_CFG, cfg)
}

// GetDataSel returns the currently selected data source.
func (lnk *Link) GetDataSel() DataSource {
	return DataSource(lnk.gtx.getReg(REG_GTX_DATAPATH_CFG) & DATAPATH_CFG_RX_SEL_MASK)
}

// SetHdrConfig writes the header template applied to pattern generated
// microslices.
func (lnk *Link) SetHdrConfig(cfg *HdrConfig) {
	word := uint32(cfg.EqID) | uint32(cfg.SysID)<<16 | uint32(cfg.SysVer)<<24
	lnk.gtx.setMem(REG_GTX_MC_GEN_CFG_HDR, []uint32{word})
}

///// CBMnet control interface /////

// SendDcm sends a CBMnet control message. The call fails fast with
// ErrHardwareNotReady if the send FSM is still busy with a previous
// message; messages with an out-of-range word count are rejected without
// touching device memory.
func (lnk *Link) SendDcm(msg *CtrlMsg) error {
	if msg.Words < CTRL_MSG_WORDS_MIN || msg.Words > CTRL_MSG_WORDS_MAX {
		return errors.Errorf("link %d: control message with %d words outside [%d,%d]",
			lnk.id, msg.Words, CTRL_MSG_WORDS_MIN, CTRL_MSG_WORDS_MAX)
	}

	// check if the send FSM is ready
	if lnk.gtx.getBit(REG_GTX_CTRL_TX, CTRL_BIT_TX_START) {
		return errors.Wrapf(ErrHardwareNotReady, "link %d: control TX busy", lnk.id)
	}

	// copy the message to board memory, 16 bit words packed in pairs and
	// padded to the 32 bit boundary
	lnk.gtx.setMem(MEM_BASE_CTRL_TX, packCtrlWords(msg.Data[:msg.Words]))

	// start the send FSM
	lnk.gtx.setReg(REG_GTX_CTRL_TX, 1<<CTRL_BIT_TX_START|(msg.Words-1))

	return nil
}

// RecvDcm receives a pending CBMnet control message. It returns
// ErrNoMessage if none is pending. A message with an out-of-range word
// count is clamped to the maximum and returned together with ErrTruncated.
func (lnk *Link) RecvDcm() (*CtrlMsg, error) {
	ctrl := lnk.gtx.getReg(REG_GTX_CTRL_RX)
	if ctrl&(1<<CTRL_BIT_RX_VALID) == 0 {
		return nil, errors.Wrapf(ErrNoMessage, "link %d", lnk.id)
	}

	msg := &CtrlMsg{Words: ctrl&CTRL_WORDS_MASK + 1}

	var truncated bool
	if msg.Words < CTRL_MSG_WORDS_MIN || msg.Words > CTRL_MSG_WORDS_MAX {
		msg.Words = CTRL_MSG_WORDS_MAX
		truncated = true
	}

	// read the message from board memory
	nWords := (msg.Words*2 + (msg.Words*2)%4) / 4
	unpackCtrlWords(lnk.gtx.getMem(MEM_BASE_CTRL_RX, int(nWords)), msg.Data[:msg.Words])

	// acknowledge the message
	lnk.gtx.setReg(REG_GTX_CTRL_RX, 0)

	if truncated {
		return msg, errors.Wrapf(ErrTruncated, "link %d", lnk.id)
	}
	return msg, nil
}

// packCtrlWords packs 16 bit message words in pairs into 32 bit bus words,
// padding the last word when the count is odd.
func packCtrlWords(data []uint16) []uint32 {
	packed := make([]uint32, (len(data)+1)/2)
	for i, word := range data {
		packed[i/2] |= uint32(word) << (16 * uint(i%2))
	}
	return packed
}

// unpackCtrlWords splits 32 bit bus words into 16 bit message words.
func unpackCtrlWords(packed []uint32, data []uint16) {
	for i := range data {
		data[i] = uint16(packed[i/2] >> (16 * uint(i%2)))
	}
}

///// deterministic latency messages /////

// PrepareDlm arms the link for a deterministic latency message of the given
// type. The message is emitted by all prepared links synchronously when the
// device-wide trigger is written, see Flib.SendDlm.
func (lnk *Link) PrepareDlm(dlmType uint8, enable bool) {
	reg := uint32(dlmType) & DLM_TYPE_MASK
	if enable {
		reg |= 1 << DLM_BIT_TX_ENABLE
	}
	lnk.gtx.setReg(REG_GTX_DLM, reg)
}

// RecvDlm returns the type of the most recently received deterministic
// latency message and clears the receive register.
func (lnk *Link) RecvDlm() uint8 {
	reg := lnk.gtx.getReg(REG_GTX_DLM)
	dlmType := uint8(reg >> DLM_RX_TYPE_SHIFT & DLM_TYPE_MASK)
	lnk.gtx.setBit(REG_GTX_DLM, DLM_BIT_RX_CLEAR, true)
	return dlmType
}

///// status and performance /////

// SetPerfInterval sets the measurement interval of the link's performance
// counters, given in milliseconds.
func (lnk *Link) SetPerfInterval(ms uint32) {
	cycles := uint32(uint64(ms) * FREQ_PKT_CLK / 1000)
	lnk.pkt.setReg(REG_PERF_INTERVAL, cycles)
	lnk.gtx.setReg(REG_GTX_PERF_INTERVAL, cycles)
}

// LinkPerf snapshots the per-link performance counter group. The hardware
// latches the group at the interval boundary.
func (lnk *Link) LinkPerf() LinkPerf {
	return LinkPerf{
		PktCycleCnt:  uint64(lnk.pkt.getReg(REG_PERF_PKT_CYCLE_CNT)),
		DmaStall:     uint64(lnk.pkt.getReg(REG_PERF_DMA_STALL)),
		DataBufStall: uint64(lnk.pkt.getReg(REG_PERF_EBUF_STALL)),
		DescBufStall: uint64(lnk.pkt.getReg(REG_PERF_RBUF_STALL)),
		Events:       uint64(lnk.pkt.getReg(REG_PERF_N_EVENTS)),
		GtxCycleCnt:  uint64(lnk.gtx.getReg(REG_GTX_PERF_CYCLE_CNT)),
		DinFullGtx:   uint64(lnk.gtx.getReg(REG_GTX_PERF_DIN_FULL)),
	}
}

// LinkStatus reads the per-link status bits.
func (lnk *Link) LinkStatus() LinkStatus {
	sts := lnk.gtx.getReg(REG_GTX_LINK_STS)
	return LinkStatus{
		ChannelUp:       sts&(1<<LINK_STS_BIT_CHANNEL_UP) != 0,
		HardErr:         sts&(1<<LINK_STS_BIT_HARD_ERR) != 0,
		SoftErr:         sts&(1<<LINK_STS_BIT_SOFT_ERR) != 0,
		EoeFifoOverflow: sts&(1<<LINK_STS_BIT_EOE_FIFO_OVFL) != 0,
		DFifoOverflow:   sts&(1<<LINK_STS_BIT_D_FIFO_OVFL) != 0,
		DFifoMaxWords:   sts >> LINK_STS_D_FIFO_WORDS_SHIFT,
	}
}

///// getter functions /////

// Ebuf returns the link's event buffer.
func (lnk *Link) Ebuf() *DmaBuffer {
	return lnk.ebuf
}

// Dbuf returns the link's descriptor buffer.
func (lnk *Link) Dbuf() *DmaBuffer {
	return lnk.dbuf
}

// EbufInfo returns a human readable description of the event buffer.
func (lnk *Link) EbufInfo() string {
	return lnk.ebuf.Info()
}

// DbufInfo returns a human readable description of the descriptor buffer.
func (lnk *Link) DbufInfo() string {
	return lnk.dbuf.Info()
}
