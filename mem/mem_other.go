//go:build !linux
// +build !linux

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
	"github.com/bytedance/gopkg/lang/dirtmake"
)

// reserve allocates the slab on the Go heap without zeroing it. Go slices
// do not move, so the slab address stays stable for pointer arithmetic.
func reserve(n int) ([]byte, error) {
	return dirtmake.Bytes(n, n), nil
}

func release(slab []byte) error { return nil }
