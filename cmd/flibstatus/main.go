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
// Displays status and performance counters for all FLIB links. Without
// arguments the tool enters a monitoring loop that prints one measurement
// per second until interrupted.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	flib "github.com/jrnh58/flesnet"
)

// measurement interval (equals output interval)
const intervalMs = 1000

const helpText = `Displays status and performance counters for all FLIB links.
Per FLIB counters:
idle:     PCIe interface is idle (ratio)
stall:    back pressure on PCIe interface from host (ratio)
trans:    data is transmitted via PCIe interface (ratio)
Per link status/counters:
link:     flib/link
data_sel: chosen data source
up:       channel_up
he:       hard_error
se:       soft_error
eo:       eoe fifo overflow
do:       data fifo overflow
d_max:    maximum number of words in d_fifo
dma_s:    stall from dma mux (ratio)
data_s:   stall from full data buffer (ratio)
desc_s:   stall from full desc buffer (ratio)
bp:       back pressure to link (ratio)
rate:     ms processing rate (Hz*)
* Based on the assumption that the PCIe clock is exactly 100 MHz.
  This may not be true in case of PCIe spread-spectrum clocking.
`

func main() {
	// display help if any parameter given
	if len(os.Args) != 1 {
		fmt.Print(helpText)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
}

func run() error {
	op, err := flib.DeviceOperatorCreate()
	if err != nil {
		return err
	}

	numDev := int(op.DeviceCount())
	flibs := make([]*flib.Flib, numDev)
	monitors := make([]*flib.PerfMonitor, numDev)
	for i := range flibs {
		if flibs[i], err = flib.FlibCreate(i); err != nil {
			return err
		}
		defer flibs[i].Close()

		// set measurement interval for device and all links and discard
		// the first DMA counter snapshot
		monitors[i] = flib.PerfMonitorCreate(flibs[i], intervalMs)
	}

	fmt.Println("Starting measurements")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, unix.SIGINT, unix.SIGTERM, unix.SIGABRT)
	g.Go(func() error {
		select {
		case <-sig:
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(intervalMs * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				printMeasurement(flibs, monitors)
			}
		}
	})

	return g.Wait()
}

func printMeasurement(flibs []*flib.Flib, monitors []*flib.PerfMonitor) {
	samples := make([]*flib.PerfSample, len(monitors))
	for i, mon := range monitors {
		samples[i] = mon.Sample()
	}

	// clear screen
	fmt.Print("\033c")
	if len(samples) == 0 {
		fmt.Println("no FLIB devices present")
		return
	}

	fmt.Printf("Measurement %d:\n", samples[0].Measurement)
	for i, sample := range samples {
		fmt.Printf("FLIB %d (%s)\n", i, flibs[i].Info())
		printPciTable(sample)
		printDmaTable(sample)
	}
	fmt.Println()

	fmt.Println("link  data_sel  up  d_max        bp       avg     dma_s" +
		"       avg    data_s       avg    desc_s       avg      rate       avg" +
		"  he  se  eo  do")
	for i, sample := range samples {
		printLinkTable(i, sample)
	}
}

func printPciTable(sample *flib.PerfSample) {
	fmt.Printf("PCIe idle %9s   stall %9s (max. %5.1f us)   trans %9s\n",
		fmtRatio(sample.Pci.Idle), fmtRatio(sample.Pci.Stall),
		sample.Pci.MaxStallUs, fmtRatio(sample.Pci.Trans))
	fmt.Printf("avg.      %9s         %9s                    trans %9s\n",
		fmtRatio(sample.Pci.IdleAcc), fmtRatio(sample.Pci.StallAcc),
		fmtRatio(sample.Pci.TransAcc))
}

func printDmaTable(sample *flib.PerfSample) {
	fmt.Println("fill     1/8     2/8     3/8     4/8     5/8     6/8     7/8" +
		"     8/8    merr")
	fmt.Print("    ")
	for _, fill := range sample.Dma.FifoFill {
		fmt.Printf(" %7s", fmtPct(fill))
	}
	fmt.Printf(" %7d\n", sample.Dma.Overflow)
	fmt.Print("avg.")
	for _, fill := range sample.Dma.FifoFillAcc {
		fmt.Printf(" %7s", fmtPct(fill))
	}
	fmt.Printf(" %7d\n", sample.Dma.OverflowTotal)
}

func printLinkTable(dev int, sample *flib.PerfSample) {
	if sample == nil {
		return
	}
	for i, lnk := range sample.Links {
		fmt.Printf("%2d/%d  %8s  %2t  %5d  %8s  %8s  %8s  %8s  %8s  %8s  "+
			"%8s  %8s  %7s  %8s  %2t  %2t  %2t  %2t\n",
			dev, i, lnk.DataSel, lnk.Status.ChannelUp,
			lnk.Status.DFifoMaxWords,
			fmtPct(lnk.DinFull), fmtPct(lnk.DinFullAcc),
			fmtPct(lnk.DmaStall), fmtPct(lnk.DmaStallAcc),
			fmtPct(lnk.DataBufStall), fmtPct(lnk.DataBufStallAcc),
			fmtPct(lnk.DescBufStall), fmtPct(lnk.DescBufStallAcc),
			fmtRate(lnk.EventRate), fmtRate(lnk.EventRateAcc),
			lnk.Status.HardErr, lnk.Status.SoftErr,
			lnk.Status.EoeFifoOverflow, lnk.Status.DFifoOverflow)
	}
	fmt.Println()
}

// fmtRatio formats a 0..1 ratio, mapping the unavailable sentinel to n/a.
func fmtRatio(r float64) string {
	if r == flib.RatioUnavailable {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", r)
}

// fmtPct formats a 0..1 ratio as a percentage.
func fmtPct(r float64) string {
	if r == flib.RatioUnavailable {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", r*100)
}

// fmtRate formats an event rate in Hz.
func fmtRate(r float64) string {
	if r == flib.RatioUnavailable {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", r)
}
