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
// FLIB register definitions. The constants in this file mirror the register
// map of the hardware build (generated from src/packages/registers.vhd) and
// must be kept in sync with it. All addresses are 32 bit word offsets into
// the register BAR.
//
// The BAR is partitioned as follows: global device registers occupy word
// offsets 0..31. Each link owns a channel window starting at
// (link_index + 1) * CHANNEL_OFFSET, split into a packetizer sub-window at
// the channel base and a GTX sub-window at base + (1 << GTX_WINDOW_SHIFT).

package flib

// channel window geometry
const (
	CHANNEL_OFFSET   = 0x8000
	GTX_WINDOW_SHIFT = 13
)

// global device registers
const (
	REG_HARDWARE_INFO        = 0
	REG_BUILD_FLAGS          = 1
	REG_N_CHANNELS           = 2
	REG_BUILD_DATE_L         = 3
	REG_BUILD_DATE_H         = 4
	REG_BUILD_REV_0          = 5
	REG_BUILD_REV_1          = 6
	REG_BUILD_REV_2          = 7
	REG_BUILD_REV_3          = 8
	REG_BUILD_REV_4          = 9
	REG_DLM_CFG              = 10
	REG_SYS_PERF_INT         = 11
	REG_SYS_PERF_INT_CYCLES  = 12
	REG_PERF_PCI_NRDY        = 13
	REG_PERF_PCI_TRANS       = 14
	REG_PERF_PCI_MAX_NRDY    = 15
	REG_PERF_DMA_FIFO_FILL_0 = 16
	REG_PERF_DMA_FIFO_FILL_1 = 17
	REG_PERF_DMA_FIFO_FILL_2 = 18
	REG_PERF_DMA_FIFO_FILL_3 = 19
	REG_PERF_DMA_FIFO_FILL_4 = 20
	REG_PERF_DMA_FIFO_FILL_5 = 21
	REG_PERF_DMA_FIFO_FILL_6 = 22
	REG_PERF_DMA_FIFO_FILL_7 = 23
	REG_PERF_DMA_CYCLE_CNT   = 24
	REG_PERF_DMA_OVERFLOW    = 25
	REG_PCIE_CTRL            = 26
)

// per-channel packetizer registers (relative to the channel base)
const (
	REG_EBDM_N_SG_CONFIG          = 0
	REG_EBDM_BUFFER_SIZE_L        = 1
	REG_EBDM_BUFFER_SIZE_H        = 2
	REG_RBDM_N_SG_CONFIG          = 3
	REG_RBDM_BUFFER_SIZE_L        = 4
	REG_RBDM_BUFFER_SIZE_H        = 5
	REG_EBDM_SW_READ_POINTER_L    = 6
	REG_EBDM_SW_READ_POINTER_H    = 7
	REG_RBDM_SW_READ_POINTER_L    = 8
	REG_RBDM_SW_READ_POINTER_H    = 9
	REG_DMA_CTRL                  = 10
	REG_PERF_N_EVENTS             = 11
	REG_EBDM_FPGA_WRITE_POINTER_L = 12
	REG_EBDM_FPGA_WRITE_POINTER_H = 13
	REG_RBDM_FPGA_WRITE_POINTER_L = 14
	REG_RBDM_FPGA_WRITE_POINTER_H = 15
	REG_SGENTRY_ADDR_LOW          = 16
	REG_SGENTRY_ADDR_HIGH         = 17
	REG_SGENTRY_LEN               = 18
	REG_SGENTRY_CTRL              = 19
	REG_PERF_DMA_STALL            = 20
	REG_MISC_CFG                  = 21
	REG_MISC_STS                  = 22
	REG_DESC_CNT_L                = 25
	REG_DESC_CNT_H                = 26
	REG_PERF_INTERVAL             = 27
	REG_PERF_EBUF_STALL           = 28
	REG_PERF_RBUF_STALL           = 29
	REG_PERF_PKT_CYCLE_CNT        = 30
)

// per-channel GTX registers (relative to the GTX sub-window base)
const (
	REG_GTX_DATAPATH_CFG     = 0
	REG_GTX_LINK_STS         = 1
	REG_GTX_PERF_INTERVAL    = 2
	REG_GTX_PERF_DIN_FULL    = 3
	REG_GTX_PERF_CYCLE_CNT   = 4
	REG_GTX_MC_GEN_CFG       = 8
	REG_GTX_MC_GEN_CFG_IDX_L = 9
	REG_GTX_MC_GEN_CFG_IDX_H = 10
	REG_GTX_MC_GEN_CFG_HDR   = 11
	REG_GTX_PENDING_MC_L     = 12
	REG_GTX_PENDING_MC_H     = 13
	REG_GTX_MC_INDEX_L       = 14
	REG_GTX_MC_INDEX_H       = 15
	REG_GTX_DLM              = 16
	REG_GTX_CTRL_TX          = 17
	REG_GTX_CTRL_RX          = 18
	MEM_BASE_CTRL_TX         = 0x20
	MEM_BASE_CTRL_RX         = 0x40
)

// REG_DMA_CTRL bit assignment. Bits [31:16] carry the maximum DMA payload
// size in 32 bit words.
const (
	DMA_CTRL_BIT_ENABLE      = 0
	DMA_CTRL_BIT_FIFO_RST    = 1
	DMA_CTRL_BIT_EBDM_ENABLE = 2
	DMA_CTRL_BIT_RBDM_ENABLE = 3
	DMA_CTRL_BIT_BUSY        = 7
	DMA_CTRL_PAYLOAD_SHIFT   = 16
)

// REG_GTX_DATAPATH_CFG bit assignment. Bits [1:0] select the data source,
// bit 2 holds the datapath in reset while set.
const (
	DATAPATH_CFG_RX_SEL_MASK = 0x3
	DATAPATH_CFG_BIT_RST     = 2
)

// REG_GTX_MC_GEN_CFG bit assignment. Bits 0 and 1 are edge triggered in
// hardware and must be pulsed (set then cleared, no intervening access).
const (
	MC_GEN_CFG_BIT_SET_START_IDX  = 0
	MC_GEN_CFG_BIT_RST_PENDING_MC = 1
	MC_GEN_CFG_BIT_PACKER_ENABLE  = 2
)

// REG_GTX_DLM bit assignment. Bits [3:0] hold the TX type, bit 4 arms the
// link for the device-wide trigger, bits [8:5] hold the received type and
// bit 31 is a self clearing RX clear.
const (
	DLM_TYPE_MASK     = 0xF
	DLM_BIT_TX_ENABLE = 4
	DLM_RX_TYPE_SHIFT = 5
	DLM_BIT_RX_CLEAR  = 31
)

// REG_GTX_CTRL_TX / REG_GTX_CTRL_RX bit assignment. Bits [4:0] hold the
// message word count minus one, bit 31 flags busy (TX) or valid (RX).
const (
	CTRL_WORDS_MASK   = 0x1F
	CTRL_BIT_TX_START = 31
	CTRL_BIT_RX_VALID = 31
)

// REG_GTX_LINK_STS bit assignment. Bits [31:16] report the maximum number
// of words observed in the data FIFO within the measurement interval.
const (
	LINK_STS_BIT_CHANNEL_UP     = 0
	LINK_STS_BIT_HARD_ERR       = 1
	LINK_STS_BIT_SOFT_ERR       = 2
	LINK_STS_BIT_EOE_FIFO_OVFL  = 3
	LINK_STS_BIT_D_FIFO_OVFL    = 4
	LINK_STS_D_FIFO_WORDS_SHIFT = 16
)
