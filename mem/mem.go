/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package mem provides the sbrk-style heap substrate the allocator sits on.
//
// A Heap reserves a fixed slab of memory once and then hands it out through
// a monotonically growing break pointer. Apart from Reset, which rewinds it
// to zero, the break only ever grows; memory is never returned until the
// whole Heap is released.
package mem

import (
	"errors"
	"fmt"
)

// ErrNoMem is returned by Sbrk when growing the break would exceed the
// reserved slab.
var ErrNoMem = errors.New("mem: out of memory")

// Heap is a fixed memory reservation with an sbrk-style break pointer.
// It is not safe for concurrent use.
type Heap struct {
	slab []byte
	brk  int
}

// NewHeap reserves max bytes and returns a Heap with the break at zero.
// The slab is reserved in one shot; Sbrk never allocates.
func NewHeap(max int) (*Heap, error) {
	if max <= 0 {
		return nil, fmt.Errorf("mem: heap size must be positive, got %d", max)
	}
	slab, err := reserve(max)
	if err != nil {
		return nil, err
	}
	return &Heap{slab: slab}, nil
}

// Sbrk grows the break by incr bytes and returns the previous break offset.
// On failure the break is unchanged and the offset is -1.
func (h *Heap) Sbrk(incr int) (int, error) {
	if incr < 0 {
		return -1, fmt.Errorf("mem: negative sbrk increment %d", incr)
	}
	if h.brk+incr > len(h.slab) {
		return -1, ErrNoMem
	}
	old := h.brk
	h.brk += incr
	return old, nil
}

// Hi returns the offset of the last in-use byte, i.e. the current break
// minus one. It is -1 before the first successful Sbrk.
func (h *Heap) Hi() int { return h.brk - 1 }

// Size returns the number of in-use bytes, i.e. the current break.
func (h *Heap) Size() int { return h.brk }

// Cap returns the total reserved slab size.
func (h *Heap) Cap() int { return len(h.slab) }

// Bytes returns the full reserved slab. Only the first Size() bytes are
// in use.
func (h *Heap) Bytes() []byte { return h.slab }

// Reset rewinds the break to zero. The slab contents are left as-is.
func (h *Heap) Reset() { h.brk = 0 }

// Release returns the slab to the OS where the platform supports it.
// The Heap must not be used afterwards.
func (h *Heap) Release() error {
	err := release(h.slab)
	h.slab = nil
	h.brk = 0
	return err
}
