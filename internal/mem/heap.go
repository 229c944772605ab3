// Package mem implements the kernel's dynamic heap: a single fixed region
// carved up with boundary tags and a LIFO free list, in the style of
// original_source/mem.c's mem_btag/mem_hbtag/mem_fbtag/mem_block layout.
// mem_alloc and mem_free are empty stubs in that source, so the allocation
// algorithm itself (first-fit scan, split, coalesce) is this package's own,
// built to the same boundary-tag shape.
//
// A Heap has no internal lock — same as the C original, which expects its
// caller to hold the scheduler lock or a dedicated heap mutex around Alloc
// and Free. Kernel.Alloc and Kernel.Free in the root package call it
// without taking any lock of their own.
package mem

import (
	"encoding/binary"
	"errors"
	"unsafe"
)

// ErrOutOfMemory is returned when no free block large enough for a request
// exists in the region.
var ErrOutOfMemory = errors.New("mem: heap exhausted")

const (
	// tagSize is the on-disk size of a boundary tag: a 4-byte size field
	// and a 4-byte allocated flag. Every block carries one at each end.
	tagSize = 8

	// linkSize is the size of the free-list prev/next offset pair stored
	// in the payload of a free block.
	linkSize = 8

	// none marks the end of the free list (no real block ever lives at
	// this offset, the largest a uint32 can hold).
	none = ^uint32(0)
)

// minBlockSize is the smallest block the allocator will ever produce: a
// header, a footer, and room for the free-list link when the block is on
// the free list.
func minBlockSize(align uint32) uint32 {
	return roundUp(2*tagSize+linkSize, align)
}

func roundUp(n, align uint32) uint32 {
	return (n + align - 1) / align * align
}

// Heap is one fixed region of bytes managed as a boundary-tag allocator.
// A block at offset off has layout:
//
//	[off, off+8)              header tag   {size, allocated}
//	[off+8, off+size-8)       payload (or, when free, the prev/next link)
//	[off+size-8, off+size)    footer tag   {size, allocated}
//
// size always counts both tags, so a block's footer sits at off+size-tagSize
// and the next physical block begins at off+size.
type Heap struct {
	buf      []byte
	align    uint32
	freeHead uint32
}

// New creates a Heap of the given size, with alignment align (must be a
// power of two; the boundary-tag and free-link layout needs at least 4).
func New(size int, align uint32) *Heap {
	if align < 4 {
		align = 4
	}
	h := &Heap{
		buf:   make([]byte, size),
		align: align,
	}
	h.initRegion()
	return h
}

func (h *Heap) initRegion() {
	size := uint32(len(h.buf))
	h.writeTag(0, size, false)
	h.writeTag(size-tagSize, size, false)
	h.setPrev(0, none)
	h.setNext(0, none)
	h.freeHead = 0
}

// Size returns the total size of the managed region, in bytes.
func (h *Heap) Size() int {
	return len(h.buf)
}

// FreeBytes reports the number of bytes currently sitting in free blocks,
// including their boundary tags.
func (h *Heap) FreeBytes() int {
	var total uint32
	for off := h.freeHead; off != none; off = h.getNext(off) {
		size, _ := h.readTag(off)
		total += size
	}
	return int(total)
}

// --- boundary tag accessors ---

func (h *Heap) readTag(off uint32) (size uint32, allocated bool) {
	size = binary.LittleEndian.Uint32(h.buf[off : off+4])
	allocated = binary.LittleEndian.Uint32(h.buf[off+4:off+8]) != 0
	return
}

func (h *Heap) writeTag(off, size uint32, allocated bool) {
	binary.LittleEndian.PutUint32(h.buf[off:off+4], size)
	var a uint32
	if allocated {
		a = 1
	}
	binary.LittleEndian.PutUint32(h.buf[off+4:off+8], a)
}

// --- free-list link accessors (stored in the payload of a free block) ---

func (h *Heap) getPrev(off uint32) uint32 {
	return binary.LittleEndian.Uint32(h.buf[off+tagSize : off+tagSize+4])
}

func (h *Heap) setPrev(off, v uint32) {
	binary.LittleEndian.PutUint32(h.buf[off+tagSize:off+tagSize+4], v)
}

func (h *Heap) getNext(off uint32) uint32 {
	return binary.LittleEndian.Uint32(h.buf[off+tagSize+4 : off+tagSize+8])
}

func (h *Heap) setNext(off, v uint32) {
	binary.LittleEndian.PutUint32(h.buf[off+tagSize+4:off+tagSize+8], v)
}

// flPush links the free block at off in at the head of the free list.
func (h *Heap) flPush(off uint32) {
	h.setPrev(off, none)
	h.setNext(off, h.freeHead)
	if h.freeHead != none {
		h.setPrev(h.freeHead, off)
	}
	h.freeHead = off
}

// flRemove unlinks the free block at off from wherever it sits in the
// free list.
func (h *Heap) flRemove(off uint32) {
	prev := h.getPrev(off)
	next := h.getNext(off)
	if prev != none {
		h.setNext(prev, next)
	} else {
		h.freeHead = next
	}
	if next != none {
		h.setPrev(next, prev)
	}
}

// Alloc returns a slice of at least n bytes carved out of the region using
// first fit, splitting the found block if the remainder is large enough to
// host a block of its own. Alloc(0) returns (nil, nil): no allocation is
// made, matching the original kernel's null-for-zero-size convention.
func (h *Heap) Alloc(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if n < 0 {
		return nil, errors.New("mem: negative allocation size")
	}

	min := minBlockSize(h.align)
	want := roundUp(uint32(n), h.align) + 2*tagSize
	if want < min {
		want = min
	}

	off := none
	for cur := h.freeHead; cur != none; cur = h.getNext(cur) {
		size, _ := h.readTag(cur)
		if size >= want {
			off = cur
			break
		}
	}
	if off == none {
		return nil, ErrOutOfMemory
	}

	size, _ := h.readTag(off)
	h.flRemove(off)

	remainder := size - want
	if remainder >= min {
		h.writeTag(off, want, true)
		h.writeTag(off+want-tagSize, want, true)

		freeOff := off + want
		h.writeTag(freeOff, remainder, false)
		h.writeTag(freeOff+remainder-tagSize, remainder, false)
		h.flPush(freeOff)
	} else {
		// Keep the whole block; the leftover remainder bytes are
		// internal fragmentation, not worth a second block.
		h.writeTag(off, size, true)
		h.writeTag(off+size-tagSize, size, true)
		want = size
	}

	payloadStart := off + tagSize
	payloadCap := want - 2*tagSize
	return h.buf[payloadStart : payloadStart+uint32(n) : payloadStart+payloadCap], nil
}

// Free returns p, previously returned by Alloc, to the heap, coalescing it
// with any free neighbor blocks that are physically adjacent. Passing a
// slice not obtained from this Heap, or one already freed, is a programming
// error and panics rather than silently corrupting the region.
func (h *Heap) Free(p []byte) {
	if len(p) == 0 {
		return
	}

	base := uintptr(unsafe.Pointer(&h.buf[0]))
	ptr := uintptr(unsafe.Pointer(&p[0]))
	if ptr < base || ptr >= base+uintptr(len(h.buf)) {
		panic("mem: free of pointer outside heap region")
	}

	off := uint32(ptr-base) - tagSize
	size, allocated := h.readTag(off)
	if !allocated {
		panic("mem: double free")
	}

	h.writeTag(off, size, false)
	h.writeTag(off+size-tagSize, size, false)

	// Coalesce with the next physical block, if it is free.
	next := off + size
	if next < uint32(len(h.buf)) {
		if nsize, nalloc := h.readTag(next); !nalloc {
			h.flRemove(next)
			size += nsize
			h.writeTag(off, size, false)
			h.writeTag(off+size-tagSize, size, false)
		}
	}

	// Coalesce with the previous physical block, if it is free. Its
	// footer sits immediately before our (possibly just-grown) header.
	if off >= tagSize {
		if psize, palloc := h.readTag(off - tagSize); !palloc {
			prevOff := off - psize
			h.flRemove(prevOff)
			size += psize
			off = prevOff
			h.writeTag(off, size, false)
			h.writeTag(off+size-tagSize, size, false)
		}
	}

	h.flPush(off)
}
