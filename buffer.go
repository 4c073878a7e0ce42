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
// DMA buffer ownership. A DmaBuffer wraps a host memory region that is
// mapped for device access together with the scatter-gather list describing
// its physical pages. Buffers are identified by a stable numeric id and can
// outlive the creating process; the allocator is the authority on
// persistence.

package flib

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// SgEntry describes one contiguous physical region backing a buffer.
type SgEntry struct {
	Addr uint64 // bus address of the region
	Len  uint64 // region length in bytes
}

// BufferAllocator hands out DMA-capable buffers identified by numeric ids.
// Allocate fails with ErrAlreadyExists when the id is taken and with
// ErrAllocFailed for any other refusal. Connect fails with ErrNotFound when
// no buffer exists under the id.
type BufferAllocator interface {
	Allocate(id uint64, size uint64) (*DmaBuffer, error)
	Connect(id uint64) (*DmaBuffer, error)
	Deallocate(buf *DmaBuffer) error
}

// DmaBuffer is a host-allocated, device-visible memory region.
type DmaBuffer struct {
	id          uint64
	mem         []byte
	physSize    uint64
	mappingSize uint64
	sg          []SgEntry
	alloc       BufferAllocator
}

// ID returns the stable numeric buffer id.
func (buf *DmaBuffer) ID() uint64 {
	return buf.id
}

// Bytes returns the buffer mapping.
func (buf *DmaBuffer) Bytes() []byte {
	return buf.mem
}

// PhysSize returns the physical buffer size in bytes.
func (buf *DmaBuffer) PhysSize() uint64 {
	return buf.physSize
}

// MappingSize returns the size of the virtual mapping in bytes. It may
// exceed the physical size if the allocator maps the buffer twice back to
// back to simplify reads across the wrap boundary.
func (buf *DmaBuffer) MappingSize() uint64 {
	return buf.mappingSize
}

// NumSgEntries returns the number of scatter-gather entries backing the
// buffer.
func (buf *DmaBuffer) NumSgEntries() int {
	return len(buf.sg)
}

// SgList returns the scatter-gather list backing the buffer.
func (buf *DmaBuffer) SgList() []SgEntry {
	return buf.sg
}

// MaxRbEntries returns the number of descriptor slots the buffer can hold
// when used as a descriptor buffer.
func (buf *DmaBuffer) MaxRbEntries() uint64 {
	return buf.physSize / MICROSLICE_DESC_SIZE
}

// Info returns a human readable description of the buffer.
func (buf *DmaBuffer) Info() string {
	return fmt.Sprintf(
		"id %d, physical size %s, mapping size %s, sg entries %d, max entries %d",
		buf.id,
		datasize.ByteSize(buf.physSize).HR(),
		datasize.ByteSize(buf.mappingSize).HR(),
		len(buf.sg), buf.MaxRbEntries())
}

// deallocate releases the buffer with the owning allocator.
func (buf *DmaBuffer) deallocate() error {
	if buf.alloc == nil {
		return nil
	}
	err := buf.alloc.Deallocate(buf)
	buf.alloc = nil
	return err
}

// ShmAllocator is a buffer allocator backed by shared memory files. Buffers
// persist across processes until their backing file is removed; the
// scatter-gather list carries a single entry covering the whole region, the
// bus address translation is left to the kernel side of the DMA setup.
type ShmAllocator struct {
	// DeviceIndex scopes buffer ids to one FLIB.
	DeviceIndex int

	// Dir is the directory backing files are placed in. Defaults to
	// BUF_SHM_DIR when empty.
	Dir string
}

func (alloc *ShmAllocator) path(id uint64) string {
	dir := alloc.Dir
	if dir == "" {
		dir = BUF_SHM_DIR
	}
	return filepath.Join(dir, fmt.Sprintf(BUF_SHM_PATH_FMT, alloc.DeviceIndex, id))
}

// Allocate creates a new buffer of the given size under the given id.
func (alloc *ShmAllocator) Allocate(id uint64, size uint64) (*DmaBuffer, error) {
	path := alloc.path(id)

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, 0600)
	if err != nil {
		if err == unix.EEXIST {
			return nil, errors.Wrapf(ErrAlreadyExists, "buffer %d (%s)", id, path)
		}
		return nil, errors.Wrapf(ErrAllocFailed, "buffer %d: open: %v", id, err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = os.Remove(path)
		return nil, errors.Wrapf(ErrAllocFailed, "buffer %d: truncate: %v", id, err)
	}

	return alloc.mapBuffer(fd, id, size, path)
}

// Connect attaches to an existing buffer under the given id.
func (alloc *ShmAllocator) Connect(id uint64) (*DmaBuffer, error) {
	path := alloc.path(id)

	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		if err == unix.ENOENT {
			return nil, errors.Wrapf(ErrNotFound, "buffer %d (%s)", id, path)
		}
		return nil, errors.Wrapf(ErrAllocFailed, "buffer %d: open: %v", id, err)
	}
	defer unix.Close(fd)

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		return nil, errors.Wrapf(ErrAllocFailed, "buffer %d: stat: %v", id, err)
	}

	return alloc.mapBuffer(fd, id, uint64(stat.Size), path)
}

// Deallocate unmaps the buffer. The backing file is kept; buffers persist
// until explicitly removed.
func (alloc *ShmAllocator) Deallocate(buf *DmaBuffer) error {
	if buf.mem == nil {
		return nil
	}
	_ = unix.Munlock(buf.mem)
	if err := unix.Munmap(buf.mem); err != nil {
		return errors.Wrapf(err, "buffer %d: munmap", buf.id)
	}
	buf.mem = nil
	return nil
}

func (alloc *ShmAllocator) mapBuffer(fd int, id, size uint64, path string) (*DmaBuffer, error) {
	mem, err := unix.Mmap(fd, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(ErrAllocFailed, "buffer %d: mmap: %v", id, err)
	}

	// pin the pages; without the lock the scatter-gather list would go
	// stale on swap out
	if err := unix.Mlock(mem); err != nil {
		_ = unix.Munmap(mem)
		return nil, errors.Wrapf(ErrAllocFailed, "buffer %d: mlock: %v", id, err)
	}

	Log(LOG_DEBUG, "allocator: mapped buffer %d from %s (%s)",
		id, path, datasize.ByteSize(size).HR())

	return &DmaBuffer{
		id:          id,
		mem:         mem,
		physSize:    size,
		mappingSize: size,
		sg:          []SgEntry{{Addr: 0, Len: size}},
		alloc:       alloc,
	}, nil
}
