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
// Performance sampling. Once per measurement interval the monitor snapshots
// the device and per-link counter groups, accumulates the raw counts and
// computes instantaneous ratios (counter over interval cycle count) as well
// as lifetime ratios (summed counters over summed cycle counts).

package flib

import (
	"time"
)

// RatioUnavailable is returned for every ratio whose denominator is zero,
// i.e. when no data was collected in the measurement window.
const RatioUnavailable = -1.0

// perfRatio divides a counter by a cycle count, yielding RatioUnavailable
// instead of dividing by zero.
func perfRatio(counter, cycles uint64) float64 {
	if cycles == 0 {
		return RatioUnavailable
	}
	return float64(counter) / float64(cycles)
}

// perfRate converts an event count over a cycle count into a rate in Hz
// based on the PCIe packet clock.
func perfRate(events, cycles uint64) float64 {
	if cycles == 0 {
		return RatioUnavailable
	}
	return float64(events) / (float64(cycles) / FREQ_PKT_CLK)
}

// PciSample carries the device PCIe ratios of one measurement: the
// instantaneous value of the last interval and the lifetime accumulation.
type PciSample struct {
	Stall, Trans, Idle          float64
	StallAcc, TransAcc, IdleAcc float64
	MaxStallUs                  float64
}

// DmaSample carries the device DMA FIFO fill ratios of one measurement.
type DmaSample struct {
	FifoFill      [8]float64
	FifoFillAcc   [8]float64
	Overflow      uint64
	OverflowTotal uint64
}

// LinkSample carries one link's status and performance ratios of one
// measurement.
type LinkSample struct {
	DataSel DataSource
	Status  LinkStatus

	DinFull, DinFullAcc           float64
	DmaStall, DmaStallAcc         float64
	DataBufStall, DataBufStallAcc float64
	DescBufStall, DescBufStallAcc float64
	EventRate, EventRateAcc       float64
}

// PerfSample is one full measurement across a device and its links.
type PerfSample struct {
	Measurement uint64
	Pci         PciSample
	Dma         DmaSample
	Links       []LinkSample
}

// PerfReporter consumes measurement samples, typically for display.
type PerfReporter interface {
	Report(deviceIndex int, sample *PerfSample)
}

// pciAcc accumulates the raw device PCIe counters over the monitor
// lifetime.
type pciAcc struct {
	cycleCnt uint64
	stall    uint64
	trans    uint64
}

// PerfMonitor snapshots and accumulates the performance counters of one
// FLIB.
type PerfMonitor struct {
	flib *Flib

	intervalCycles uint64
	measurement    uint64

	pciAcc  pciAcc
	dmaAcc  DmaPerf
	linkAcc []LinkPerf
}

// PerfMonitorCreate sets the measurement interval on the device and all its
// links and prepares accumulators. The DMA FIFO counter group is read once
// and that snapshot discarded, since it may span a partial interval; the
// PCIe and link counter groups are not read here.
func PerfMonitorCreate(flib *Flib, intervalMs uint32) *PerfMonitor {
	flib.SetPerfInterval(intervalMs)

	// dummy read to reset the latched counter group
	flib.GetDmaPerf()

	return &PerfMonitor{
		flib:           flib,
		intervalCycles: uint64(flib.GetPerfIntervalCycles()),
		linkAcc:        make([]LinkPerf, flib.NumberOfHwLinks()),
	}
}

// Sample snapshots all counter groups, folds them into the lifetime
// accumulators and returns the derived ratios.
func (mon *PerfMonitor) Sample() *PerfSample {
	sample := &PerfSample{Measurement: mon.measurement}
	mon.measurement++

	// device PCIe counters
	stall := uint64(mon.flib.GetPciStall())
	trans := uint64(mon.flib.GetPciTrans())
	mon.pciAcc.cycleCnt += mon.intervalCycles
	mon.pciAcc.stall += stall
	mon.pciAcc.trans += trans

	sample.Pci.Stall = perfRatio(stall, mon.intervalCycles)
	sample.Pci.Trans = perfRatio(trans, mon.intervalCycles)
	sample.Pci.Idle = idleRatio(sample.Pci.Stall, sample.Pci.Trans)
	sample.Pci.StallAcc = perfRatio(mon.pciAcc.stall, mon.pciAcc.cycleCnt)
	sample.Pci.TransAcc = perfRatio(mon.pciAcc.trans, mon.pciAcc.cycleCnt)
	sample.Pci.IdleAcc = idleRatio(sample.Pci.StallAcc, sample.Pci.TransAcc)
	sample.Pci.MaxStallUs = mon.flib.GetPciMaxStall()

	// device DMA FIFO counters
	dma := mon.flib.GetDmaPerf()
	mon.dmaAcc.CycleCnt += dma.CycleCnt
	mon.dmaAcc.Overflow += dma.Overflow
	for i := range dma.FifoFill {
		mon.dmaAcc.FifoFill[i] += dma.FifoFill[i]
		sample.Dma.FifoFill[i] = perfRatio(dma.FifoFill[i], dma.CycleCnt)
		sample.Dma.FifoFillAcc[i] = perfRatio(mon.dmaAcc.FifoFill[i], mon.dmaAcc.CycleCnt)
	}
	sample.Dma.Overflow = dma.Overflow
	sample.Dma.OverflowTotal = mon.dmaAcc.Overflow

	// per-link counters
	sample.Links = make([]LinkSample, len(mon.linkAcc))
	for i, lnk := range mon.flib.Links() {
		perf := lnk.LinkPerf()
		acc := &mon.linkAcc[i]
		acc.PktCycleCnt += perf.PktCycleCnt
		acc.DmaStall += perf.DmaStall
		acc.DataBufStall += perf.DataBufStall
		acc.DescBufStall += perf.DescBufStall
		acc.Events += perf.Events
		acc.GtxCycleCnt += perf.GtxCycleCnt
		acc.DinFullGtx += perf.DinFullGtx

		sample.Links[i] = LinkSample{
			DataSel: lnk.GetDataSel(),
			Status:  lnk.LinkStatus(),

			DinFull:         perfRatio(perf.DinFullGtx, perf.GtxCycleCnt),
			DinFullAcc:      perfRatio(acc.DinFullGtx, acc.GtxCycleCnt),
			DmaStall:        perfRatio(perf.DmaStall, perf.PktCycleCnt),
			DmaStallAcc:     perfRatio(acc.DmaStall, acc.PktCycleCnt),
			DataBufStall:    perfRatio(perf.DataBufStall, perf.PktCycleCnt),
			DataBufStallAcc: perfRatio(acc.DataBufStall, acc.PktCycleCnt),
			DescBufStall:    perfRatio(perf.DescBufStall, perf.PktCycleCnt),
			DescBufStallAcc: perfRatio(acc.DescBufStall, acc.PktCycleCnt),
			EventRate:       perfRate(perf.Events, perf.PktCycleCnt),
			EventRateAcc:    perfRate(acc.Events, acc.PktCycleCnt),
		}
	}

	return sample
}

// idleRatio derives the idle fraction from the stall and transmit
// fractions.
func idleRatio(stall, trans float64) float64 {
	if stall == RatioUnavailable || trans == RatioUnavailable {
		return RatioUnavailable
	}
	return 1 - stall - trans
}

// Run samples once per interval and hands each sample to the reporter until
// the stop channel is closed.
func (mon *PerfMonitor) Run(interval time.Duration, stop <-chan struct{}, rep PerfReporter) {
	for {
		select {
		case <-stop:
			return
		case <-time.After(interval):
			sample := mon.Sample()
			rep.Report(mon.flib.index, sample)
		}
	}
}
