// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xenotools/bdat"
)

func newExtractCmd() *cobra.Command {
	var table, output, encoding string

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Decode one or all tables to a JSON dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bf, err := bdat.Open(args[0], &bdat.Options{LegacyEncoding: encodingFlag(encoding)})
			if err != nil {
				return err
			}
			defer bf.Close()

			refs := bf.TableRefs()
			if table != "" {
				ref, err := bf.FindRef(table)
				if err != nil {
					return err
				}
				refs = []bdat.TableRef{ref}
			}

			dumps := make([]jsonTable, 0, len(refs))
			for _, ref := range refs {
				t, err := bf.GetTableRef(ref)
				if err != nil {
					return fmt.Errorf("table %q: %w", ref.Display, err)
				}
				jt, err := tableToJSON(t)
				if err != nil {
					return fmt.Errorf("table %q: %w", ref.Display, err)
				}
				dumps = append(dumps, jt)
			}

			out := os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(dumps)
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "extract only this table (default: all)")
	cmd.Flags().StringVar(&output, "out", "", "write JSON to this file instead of stdout")
	cmd.Flags().StringVar(&encoding, "encoding", "utf8", "legacy string pool encoding: utf8 or shiftjis")
	return cmd
}
