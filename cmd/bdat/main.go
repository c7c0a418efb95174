// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Command bdat is a small external collaborator over the library's
// Open/GetTable/WriteFile surface: it lists and dumps tables from a BDAT
// file (info, extract) and can re-pack a JSON dump back into bytes (pack).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "bdat",
		Short: "Inspect and repack BDAT game-table files",
	}
	root.AddCommand(newInfoCmd())
	root.AddCommand(newExtractCmd())
	root.AddCommand(newPackCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
