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
// Tests for the microslice descriptor wire format.

package flib

import (
	"testing"
)

func TestDecodeDescriptor(t *testing.T) {
	// a descriptor laid out byte by byte as the hardware emits it
	raw := make([]uint64, 4)
	b := uint64SliceBytes(raw)

	b[0] = MS_HDR_ID  // hdr_id
	b[1] = MS_HDR_VER // hdr_ver
	b[2] = 0x03       // eq_id low
	b[3] = 0xE0       // eq_id high
	b[4] = MsFlagCrcValid | MsFlagOverflowFlim
	b[5] = 0x00
	b[6] = SubsysSTS // sys_id
	b[7] = 0x42      // sys_ver
	// idx = 0x0102030405060708
	for i, v := range []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01} {
		b[8+i] = v
	}
	// crc
	b[16], b[17], b[18], b[19] = 0xEF, 0xBE, 0xAD, 0xDE
	// size = 4096
	b[20], b[21], b[22], b[23] = 0x00, 0x10, 0x00, 0x00
	// offset = 0x20000
	b[24], b[25], b[26] = 0x00, 0x00, 0x02

	desc := decodeDescriptor(b)

	if desc.HdrID != MS_HDR_ID || desc.HdrVer != MS_HDR_VER {
		t.Errorf("header id/ver = 0x%02x/0x%02x", desc.HdrID, desc.HdrVer)
	}
	if desc.EqID != 0xE003 {
		t.Errorf("EqID = 0x%04x, want 0xE003", desc.EqID)
	}
	if desc.Flags != MsFlagCrcValid|MsFlagOverflowFlim {
		t.Errorf("Flags = 0x%04x", desc.Flags)
	}
	if desc.SysID != SubsysSTS || desc.SysVer != 0x42 {
		t.Errorf("SysID/SysVer = 0x%02x/0x%02x", desc.SysID, desc.SysVer)
	}
	if desc.Idx != 0x0102030405060708 {
		t.Errorf("Idx = 0x%x", desc.Idx)
	}
	if desc.Crc != 0xDEADBEEF {
		t.Errorf("Crc = 0x%08x", desc.Crc)
	}
	if desc.Size != 4096 {
		t.Errorf("Size = %d", desc.Size)
	}
	if desc.Offset != 0x20000 {
		t.Errorf("Offset = 0x%x", desc.Offset)
	}
}

func TestStoreDecodeRoundTrip(t *testing.T) {
	raw := make([]uint64, 8)
	db := uint64SliceBytes(raw)

	want := testDescriptor(17, 0x1234, 512)
	storeDescriptor(db, 1, want)

	got := decodeDescriptor(db[MICROSLICE_DESC_SIZE:])
	if got != want {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}
