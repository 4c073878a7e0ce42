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
// Global definitions.

package flib

import "time"

const (
	// PCIe packet clock frequency. All hardware performance counters count
	// cycles of this clock. The actual frequency may deviate slightly in
	// case of PCIe spread-spectrum clocking.
	FREQ_PKT_CLK = 100e6

	// PCIExpress Base Address Register IDs
	PCIE_BAR_FUNCTION_ID = 0x0
	PCIE_BAR_VENDOR_ID   = 0x10ee
	PCIE_BAR_DEVICE_ID   = 0x7038
	PCIE_BAR_ID          = 0x1

	// maximum number of links a single FLIB can carry
	N_LINKS_MAX = 8

	// expected hardware version. will be checked upon initialization
	HW_VERSION = 26

	// size of a single microslice descriptor in bytes. this is hard coded
	// in the hardware
	MICROSLICE_DESC_SIZE = 32

	// maximum DMA payload size in 32 bit words
	DMA_MAX_PAYLOAD_WORDS = 128

	// number of 16 bit words a CBMnet control message may carry
	CTRL_MSG_WORDS_MIN = 4
	CTRL_MSG_WORDS_MAX = 32

	// number of attempts made at reading a descriptor slot before the slot
	// is treated as not yet published
	DESC_READ_RETRIES = 3

	// ceiling for the DMA shutdown busy-wait and the poll period used
	// while waiting
	DMA_BUSY_WAIT_TIMEOUT = time.Second
	DMA_BUSY_POLL_PERIOD  = 10 * time.Millisecond
)

// sysfs path scanned for FLIB devices
const PCI_SYSFS_DEVICE_DIR = "/sys/bus/pci/devices"

// file name pattern used by the buffer allocator. The first placeholder is
// the device index, the second the buffer id.
const BUF_SHM_PATH_FMT = "flib%d_buf%d"

// default directory the buffer allocator places its mappings in
const BUF_SHM_DIR = "/dev/shm"
