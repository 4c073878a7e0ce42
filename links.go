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
// This file defines the Links data type, a slice containing pointers on a
// list of Link instances. It implements some convenience functions enabling
// easy control over all links of a device.

package flib

// Links is a slice type holding pointers on Link instances. It implements
// functions that allow easy control of multiple Link instances at once.
type Links []*Link

// SetPerfInterval sets the performance measurement interval on all links.
func (links *Links) SetPerfInterval(ms uint32) {
	for _, lnk := range *links {
		lnk.SetPerfInterval(ms)
	}
}

// EnableCbmnetPacker enables or disables the microslice packer on all
// links.
func (links *Links) EnableCbmnetPacker(enable bool) {
	for _, lnk := range *links {
		lnk.EnableCbmnetPacker(enable)
	}
}

// Stop stops the data path and DMA engine on all links.
func (links *Links) Stop() {
	for _, lnk := range *links {
		lnk.Stop()
	}
}

// closeBuffers releases the buffers of all links. The first deallocation
// failure is returned.
func (links *Links) closeBuffers() error {
	for _, lnk := range *links {
		if err := lnk.closeBuffers(); err != nil {
			return err
		}
	}
	return nil
}
