// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

// Fuzz exercises dispatch and full-table decode against arbitrary input,
// for use with a coverage-guided fuzzer (go-fuzz/native go test -fuzz).
func Fuzz(data []byte) int {
	bf, err := OpenBytes(data, nil)
	if err != nil {
		return 0
	}
	for _, ref := range bf.TableRefs() {
		if _, err := bf.GetTableRef(ref); err != nil {
			return 0
		}
	}
	return 1
}
