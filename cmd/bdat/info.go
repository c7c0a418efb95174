// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xenotools/bdat"
)

func newInfoCmd() *cobra.Command {
	var encoding string

	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "List tables and schema summaries found in a BDAT file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bf, err := bdat.Open(args[0], &bdat.Options{LegacyEncoding: encodingFlag(encoding)})
			if err != nil {
				return err
			}
			defer bf.Close()

			refs := bf.TableRefs()
			fmt.Printf("%d table(s)\n", len(refs))
			for _, ref := range refs {
				fmt.Printf("\n%s\n", ref.Display)
				t, err := bf.GetTableRef(ref)
				if err != nil {
					fmt.Printf("  (could not decode: %v)\n", err)
					continue
				}
				fmt.Printf("  rows: %d (base id %d)\n", t.RowCount(), t.BaseID)
				for _, col := range t.Schema {
					fmt.Printf("  - %-24s type=%-4d shape=%d offset=%d\n",
						col.Name.String(), col.Type, col.Shape, col.Offset)
				}
			}

			if len(bf.Anomalies) > 0 {
				fmt.Println("\nanomalies:")
				for _, a := range bf.Anomalies {
					fmt.Printf("  - %s\n", a)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&encoding, "encoding", "utf8", "legacy string pool encoding: utf8 or shiftjis")
	return cmd
}

func encodingFlag(s string) bdat.LegacyEncoding {
	if s == "shiftjis" {
		return bdat.EncodingShiftJIS
	}
	return bdat.EncodingUTF8
}
