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
// Tests for the performance sampling engine.

package flib

import (
	"math"
	"testing"
	"time"
)

func TestPerfMonitorAccumulation(t *testing.T) {
	flib, rf, _ := newTestFlib(t, 1)

	rf.mem[REG_SYS_PERF_INT_CYCLES] = 1000
	mon := PerfMonitorCreate(flib, 1000)

	// the interval write converts milliseconds to packet clock cycles
	if got := rf.mem[REG_SYS_PERF_INT]; got != 100_000_000 {
		t.Errorf("interval register = %d, want 100000000", got)
	}

	stalls := []uint32{100, 300}
	trans := []uint32{500, 100}
	for i := range stalls {
		rf.mem[REG_PERF_PCI_NRDY] = stalls[i]
		rf.mem[REG_PERF_PCI_TRANS] = trans[i]
		sample := mon.Sample()

		wantStall := float64(stalls[i]) / 1000
		if sample.Pci.Stall != wantStall {
			t.Errorf("sample %d: stall = %v, want %v", i, sample.Pci.Stall, wantStall)
		}

		// lifetime ratio equals the sum of raw snapshots over the summed
		// cycle counts
		var stallSum, transSum uint64
		for j := 0; j <= i; j++ {
			stallSum += uint64(stalls[j])
			transSum += uint64(trans[j])
		}
		cycles := uint64(1000 * (i + 1))
		if got := sample.Pci.StallAcc; got != float64(stallSum)/float64(cycles) {
			t.Errorf("sample %d: stall acc = %v", i, got)
		}
		if got := sample.Pci.TransAcc; got != float64(transSum)/float64(cycles) {
			t.Errorf("sample %d: trans acc = %v", i, got)
		}

		wantIdle := 1 - sample.Pci.Stall - sample.Pci.Trans
		if math.Abs(sample.Pci.Idle-wantIdle) > 1e-12 {
			t.Errorf("sample %d: idle = %v, want %v", i, sample.Pci.Idle, wantIdle)
		}
	}
}

func TestPerfMonitorLinkRatios(t *testing.T) {
	flib, rf, _ := newTestFlib(t, 1)
	rf.mem[REG_SYS_PERF_INT_CYCLES] = 1000
	mon := PerfMonitorCreate(flib, 1000)

	rf.mem[pktBase+REG_PERF_PKT_CYCLE_CNT] = 100_000_000
	rf.mem[pktBase+REG_PERF_DMA_STALL] = 25_000_000
	rf.mem[pktBase+REG_PERF_N_EVENTS] = 1000
	rf.mem[gtxBase+REG_GTX_PERF_CYCLE_CNT] = 2000
	rf.mem[gtxBase+REG_GTX_PERF_DIN_FULL] = 500

	sample := mon.Sample()
	lnk := sample.Links[0]

	if lnk.DmaStall != 0.25 {
		t.Errorf("DmaStall = %v, want 0.25", lnk.DmaStall)
	}
	if lnk.DinFull != 0.25 {
		t.Errorf("DinFull = %v, want 0.25", lnk.DinFull)
	}
	// 1000 events in one second of packet clock cycles
	if lnk.EventRate != 1000 {
		t.Errorf("EventRate = %v, want 1000", lnk.EventRate)
	}
}

func TestPerfMonitorZeroDenominators(t *testing.T) {
	flib, rf, _ := newTestFlib(t, 1)
	rf.mem[REG_SYS_PERF_INT_CYCLES] = 0
	mon := PerfMonitorCreate(flib, 1000)

	sample := mon.Sample()

	if sample.Pci.Stall != RatioUnavailable ||
		sample.Pci.StallAcc != RatioUnavailable ||
		sample.Pci.Idle != RatioUnavailable {
		t.Errorf("PCIe ratios with zero cycles: %+v", sample.Pci)
	}
	if sample.Dma.FifoFill[0] != RatioUnavailable {
		t.Errorf("DMA fill with zero cycles: %v", sample.Dma.FifoFill[0])
	}
	lnk := sample.Links[0]
	if lnk.DmaStall != RatioUnavailable || lnk.EventRate != RatioUnavailable {
		t.Errorf("link ratios with zero cycles: %+v", lnk)
	}

	// no NaN anywhere
	for _, v := range []float64{sample.Pci.Stall, sample.Pci.Idle,
		lnk.DmaStall, lnk.EventRate, sample.Dma.FifoFill[0]} {
		if math.IsNaN(v) {
			t.Fatal("ratio is NaN")
		}
	}
}

type captureReporter struct {
	samples []*PerfSample
	done    chan struct{}
}

func (rep *captureReporter) Report(deviceIndex int, sample *PerfSample) {
	rep.samples = append(rep.samples, sample)
	select {
	case rep.done <- struct{}{}:
	default:
	}
}

func TestPerfMonitorRun(t *testing.T) {
	flib, rf, _ := newTestFlib(t, 1)
	rf.mem[REG_SYS_PERF_INT_CYCLES] = 1000
	mon := PerfMonitorCreate(flib, 1)

	rep := &captureReporter{done: make(chan struct{}, 1)}
	stop := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		mon.Run(time.Millisecond, stop, rep)
		close(finished)
	}()

	<-rep.done
	close(stop)
	<-finished

	if len(rep.samples) == 0 {
		t.Fatal("reporter received no samples")
	}
}
