//go:build linux
// +build linux

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

package mem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// reserve maps an anonymous private region so the slab lives outside the
// Go heap and keeps a stable address for pointer arithmetic.
func reserve(n int) ([]byte, error) {
	slab, err := unix.Mmap(-1, 0, n,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("mem: mmap %d bytes: %w", n, err)
	}
	return slab, nil
}

func release(slab []byte) error {
	if slab == nil {
		return nil
	}
	return unix.Munmap(slab)
}
