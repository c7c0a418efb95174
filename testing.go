// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bdat

import (
	"path"
	"path/filepath"
	"runtime"
)

// getAbsoluteFilePath resolves a path relative to the directory holding
// this source file (the package directory), letting table-driven tests reference fixtures under testdata/
// regardless of the working directory `go test` was invoked from.
func getAbsoluteFilePath(testfile string) string {
	_, p, _, _ := runtime.Caller(0)
	return path.Join(filepath.Dir(p), testfile)
}
