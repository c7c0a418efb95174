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

func newPackCmd() *cobra.Command {
	var output, dialect, variant, endian, encoding string
	var scramble bool

	cmd := &cobra.Command{
		Use:   "pack <dump.json>",
		Short: "Re-encode a JSON table dump (from extract) back to BDAT bytes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var dumps []jsonTable
			if err := json.Unmarshal(raw, &dumps); err != nil {
				return fmt.Errorf("decoding dump: %w", err)
			}

			tables := make([]*bdat.Table, len(dumps))
			for i, jt := range dumps {
				t, err := tableFromJSON(jt)
				if err != nil {
					return fmt.Errorf("table %q: %w", jt.Name, err)
				}
				tables[i] = t
			}

			d, err := dialectFlag(dialect)
			if err != nil {
				return err
			}
			v, err := variantFlag(variant)
			if err != nil {
				return err
			}

			out, err := bdat.WriteFile(tables, bdat.WriteOptions{
				Dialect:  d,
				Variant:  v,
				End:      endianFlag(endian),
				Scramble: scramble,
				Encoding: encodingFlag(encoding),
			})
			if err != nil {
				return err
			}

			if output == "" {
				output = "out.bdat"
			}
			return os.WriteFile(output, out, 0o644)
		},
	}

	cmd.Flags().StringVar(&output, "out", "", "output file path (default out.bdat)")
	cmd.Flags().StringVar(&dialect, "dialect", "legacy", "legacy or modern")
	cmd.Flags().StringVar(&variant, "variant", "wii", "legacy variant: wii, 3ds, xcx, xc2, de")
	cmd.Flags().StringVar(&endian, "endian", "big", "big or little (applies to both dialects)")
	cmd.Flags().StringVar(&encoding, "encoding", "utf8", "legacy string pool encoding: utf8 or shiftjis")
	cmd.Flags().BoolVar(&scramble, "scramble", false, "scramble legacy name-table and string sections on write")
	return cmd
}

func dialectFlag(s string) (bdat.Dialect, error) {
	switch s {
	case "legacy":
		return bdat.DialectLegacy, nil
	case "modern":
		return bdat.DialectModern, nil
	default:
		return 0, fmt.Errorf("unknown dialect %q", s)
	}
}

func variantFlag(s string) (bdat.LegacyVariant, error) {
	switch s {
	case "wii":
		return bdat.VariantWii, nil
	case "3ds":
		return bdat.Variant3DS, nil
	case "xcx":
		return bdat.VariantXCX, nil
	case "xc2":
		return bdat.VariantXC2, nil
	case "de":
		return bdat.VariantDE, nil
	default:
		return 0, fmt.Errorf("unknown legacy variant %q", s)
	}
}

func endianFlag(s string) bdat.Endianness {
	if s == "little" {
		return bdat.LittleEndian
	}
	return bdat.BigEndian
}
