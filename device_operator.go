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
// PCI device enumeration. Scans the sysfs PCI device table for FLIB boards
// by vendor and device id.

package flib

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DeviceOperator enumerates the FLIB boards present in the host.
type DeviceOperator struct {
	slots []string // PCI slot addresses, sorted
}

// DeviceOperatorCreate scans the PCI device table for FLIB boards.
func DeviceOperatorCreate() (*DeviceOperator, error) {
	return deviceOperatorCreate(PCI_SYSFS_DEVICE_DIR)
}

func deviceOperatorCreate(sysfsDir string) (*DeviceOperator, error) {
	entries, err := os.ReadDir(sysfsDir)
	if err != nil {
		return nil, errors.Wrap(err, "scanning PCI devices")
	}

	op := &DeviceOperator{}
	for _, entry := range entries {
		dir := filepath.Join(sysfsDir, entry.Name())
		if readSysfsID(filepath.Join(dir, "vendor")) == PCIE_BAR_VENDOR_ID &&
			readSysfsID(filepath.Join(dir, "device")) == PCIE_BAR_DEVICE_ID {
			op.slots = append(op.slots, entry.Name())
		}
	}
	sort.Strings(op.slots)

	Log(LOG_DEBUG, "device operator: found %d FLIB device(s)", len(op.slots))
	return op, nil
}

// readSysfsID parses a sysfs hex id file; unreadable entries never match.
func readSysfsID(path string) uint64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	id, err := strconv.ParseUint(strings.TrimSpace(strings.TrimPrefix(
		strings.TrimSpace(string(data)), "0x")), 16, 32)
	if err != nil {
		return 0
	}
	return id
}

// DeviceCount returns the number of FLIB boards found.
func (op *DeviceOperator) DeviceCount() uint64 {
	return uint64(len(op.slots))
}

// Slot returns the PCI slot address of the device with the given index.
func (op *DeviceOperator) Slot(index int) (string, error) {
	if index < 0 || index >= len(op.slots) {
		return "", fmt.Errorf("device index %d out of range, %d device(s) present",
			index, len(op.slots))
	}
	return op.slots[index], nil
}
