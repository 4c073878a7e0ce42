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
// Toplevel FLIB device struct, which owns the device's links and provides
// methods for device-wide status, performance counters, the common
// measurement interval and the device-wide DLM trigger. A new device struct
// is created by calling the FlibCreate() function.

package flib

import (
	"fmt"
	"time"

	"github.com/aoeldemann/gopcie"
	"github.com/pkg/errors"
)

// DmaPerf is a snapshot of the device DMA FIFO performance counter group:
// a fill-level histogram in eighths of the FIFO depth, the cycle count of
// the measurement interval and the number of overflow events.
type DmaPerf struct {
	FifoFill [8]uint64
	CycleCnt uint64
	Overflow uint64
}

// Flib is the toplevel struct representing one FLIB board. It owns the
// board's Link instances; configuration flows top-down from the device
// through the links into their DMA channels.
type Flib struct {
	regs  RegisterFile
	bar   *gopcie.PCIeBAR // nil when attached to a simulated register file
	alloc BufferAllocator
	index int
	links Links
}

// FlibCreate opens a FLIB board and creates its link instances. No per-link
// hardware initialization is done here.
//
// The index must name a board found by the device operator; it also scopes
// the buffer ids. The BAR itself is selected by vendor/device id only, which
// binds the first matching board whatever the index: on a host with more
// than one FLIB, every index attaches to that same board.
func FlibCreate(index int) (*Flib, error) {
	op, err := DeviceOperatorCreate()
	if err != nil {
		return nil, err
	}
	slot, err := op.Slot(index)
	if err != nil {
		return nil, err
	}

	bar, err := gopcie.PCIeBAROpen(
		PCIE_BAR_FUNCTION_ID,
		PCIE_BAR_VENDOR_ID,
		PCIE_BAR_DEVICE_ID,
		PCIE_BAR_ID)
	if err != nil {
		return nil, errors.Wrapf(err, "FLIB %d (%s): opening BAR", index, slot)
	}

	flib, err := flibAttach(&pcieBarRegisterFile{bar: bar},
		&ShmAllocator{DeviceIndex: index}, index)
	if err != nil {
		bar.Close()
		return nil, err
	}
	flib.bar = bar

	Log(LOG_INFO, "FLIB %d: %s", index, flib.Info())
	return flib, nil
}

// flibAttach binds a device struct to a register file and a buffer
// allocator and creates the link instances.
func flibAttach(regs RegisterFile, alloc BufferAllocator, index int) (*Flib, error) {
	flib := &Flib{
		regs:  regs,
		alloc: alloc,
		index: index,
	}

	// make sure the hardware version matches the software version
	hwVersion := regs.Read(REG_HARDWARE_INFO) & 0xFFFF
	if hwVersion != HW_VERSION {
		return nil, errors.Errorf("FLIB %d: hardware version is %d, expected %d",
			index, hwVersion, HW_VERSION)
	}

	nLinks := int(regs.Read(REG_N_CHANNELS))
	if nLinks < 1 || nLinks > N_LINKS_MAX {
		return nil, errors.Errorf("FLIB %d: implausible link count %d",
			index, nLinks)
	}

	flib.links = make(Links, nLinks)
	for i := range flib.links {
		flib.links[i] = linkCreate(flib, i)
	}

	return flib, nil
}

// Close stops all links, releases their buffers and closes the register
// mapping.
func (flib *Flib) Close() error {
	flib.links.Stop()
	if err := flib.links.closeBuffers(); err != nil {
		return err
	}
	if flib.bar != nil {
		flib.bar.Close()
	}
	return nil
}

// NumberOfHwLinks returns the number of links the hardware build carries.
func (flib *Flib) NumberOfHwLinks() int {
	return len(flib.links)
}

// Link returns a link instance by its index.
func (flib *Flib) Link(id int) *Link {
	if id < 0 || id >= len(flib.links) {
		Log(LOG_ERR, "invalid link ID: %d", id)
	}
	return flib.links[id]
}

// Links returns a slice containing all link instances.
func (flib *Flib) Links() Links {
	return flib.links
}

// Info returns the device identity string assembled from the build info
// registers.
func (flib *Flib) Info() string {
	date := time.Unix(int64(uint64(flib.regs.Read(REG_BUILD_DATE_H))<<32|
		uint64(flib.regs.Read(REG_BUILD_DATE_L))), 0).UTC()

	rev := ""
	for _, reg := range []uint32{REG_BUILD_REV_4, REG_BUILD_REV_3,
		REG_BUILD_REV_2, REG_BUILD_REV_1, REG_BUILD_REV_0} {
		rev += fmt.Sprintf("%08x", flib.regs.Read(reg))
	}

	return fmt.Sprintf("hw version %d, %d links, build %s, rev %s",
		flib.regs.Read(REG_HARDWARE_INFO)&0xFFFF, len(flib.links),
		date.Format("2006-01-02 15:04:05"), rev)
}

///// performance counters /////

// SetPerfInterval sets the performance measurement interval, given in
// milliseconds, for the device and all its links. The hardware stores the
// interval as PCIe packet clock cycles.
func (flib *Flib) SetPerfInterval(ms uint32) {
	cycles := uint32(uint64(ms) * FREQ_PKT_CLK / 1000)
	flib.regs.Write(REG_SYS_PERF_INT, cycles)
	flib.links.SetPerfInterval(ms)
}

// GetPerfIntervalCycles returns the length of the measurement interval in
// PCIe packet clock cycles.
func (flib *Flib) GetPerfIntervalCycles() uint32 {
	return flib.regs.Read(REG_SYS_PERF_INT_CYCLES)
}

// GetPciStall returns the number of cycles in the last measurement interval
// in which the PCIe interface was stalled by host back pressure.
func (flib *Flib) GetPciStall() uint32 {
	return flib.regs.Read(REG_PERF_PCI_NRDY)
}

// GetPciTrans returns the number of cycles in the last measurement interval
// in which the PCIe interface was transmitting data.
func (flib *Flib) GetPciTrans() uint32 {
	return flib.regs.Read(REG_PERF_PCI_TRANS)
}

// GetPciMaxStall returns the longest continuous PCIe stall of the last
// measurement interval in microseconds.
func (flib *Flib) GetPciMaxStall() float64 {
	return float64(flib.regs.Read(REG_PERF_PCI_MAX_NRDY)) / (FREQ_PKT_CLK / 1e6)
}

// GetDmaPerf snapshots the device DMA FIFO performance counter group.
func (flib *Flib) GetDmaPerf() DmaPerf {
	perf := DmaPerf{
		CycleCnt: uint64(flib.regs.Read(REG_PERF_DMA_CYCLE_CNT)),
		Overflow: uint64(flib.regs.Read(REG_PERF_DMA_OVERFLOW)),
	}
	for i := range perf.FifoFill {
		perf.FifoFill[i] =
			uint64(flib.regs.Read(REG_PERF_DMA_FIFO_FILL_0 + uint32(i)))
	}
	return perf
}

///// deterministic latency messages /////

// SendDlm triggers the synchronous emission of a deterministic latency
// message on all prepared links, see Link.PrepareDlm. The trigger register
// is the only device-wide register written on behalf of the links; only the
// device writes it, with a single register write. Concurrent calls are not
// serialized.
func (flib *Flib) SendDlm() {
	flib.regs.Write(REG_DLM_CFG, 1)
}
