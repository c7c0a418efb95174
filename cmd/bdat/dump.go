// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/xenotools/bdat"
)

// jsonColumn is the wire shape of one Column in a pack/extract dump.
type jsonColumn struct {
	Name   string        `json:"name"`
	Hash   uint32        `json:"hash,omitempty"`
	Hashed bool          `json:"hashed,omitempty"`
	Type   bdat.ValueType `json:"type"`
	Shape  bdat.CellShape `json:"shape"`
	Offset uint32        `json:"offset"`
	Arity  uint16        `json:"arity,omitempty"`
	Parent uint32        `json:"parent,omitempty"`
	Shift  uint8         `json:"shift,omitempty"`
	Mask   uint32        `json:"mask,omitempty"`
}

// jsonRow is one row: the game-visible id plus one cell per schema column,
// in declared order.
type jsonRow struct {
	ID    uint32        `json:"id"`
	Cells []interface{} `json:"cells"`
}

// jsonTable is the full dump of one decoded table.
type jsonTable struct {
	Name       string       `json:"name"`
	NameHash   uint32       `json:"name_hash,omitempty"`
	NameHashed bool         `json:"name_hashed,omitempty"`
	BaseID     uint32       `json:"base_id"`
	Columns    []jsonColumn `json:"columns"`
	Rows       []jsonRow    `json:"rows"`
}

func columnToJSON(c bdat.Column) jsonColumn {
	return jsonColumn{
		Name:   c.Name.Text,
		Hash:   c.Name.Hash,
		Hashed: c.Name.Hashed,
		Type:   c.Type,
		Shape:  c.Shape,
		Offset: c.Offset,
		Arity:  c.Arity,
		Parent: c.Parent,
		Shift:  c.Shift,
		Mask:   c.Mask,
	}
}

func columnFromJSON(c jsonColumn) bdat.Column {
	return bdat.Column{
		Name:   bdat.Name{Text: c.Name, Hash: c.Hash, Hashed: c.Hashed},
		Type:   c.Type,
		Shape:  c.Shape,
		Offset: c.Offset,
		Arity:  c.Arity,
		Parent: c.Parent,
		Shift:  c.Shift,
		Mask:   c.Mask,
	}
}

// valueToJSON unwraps a cell into a plain JSON-marshalable value, picking
// the accessor that matches the column's declared type. A ShapeList
// column's cell is unwrapped element-by-element into a JSON array.
func valueToJSON(col bdat.Column, v bdat.Value) (interface{}, error) {
	if col.Shape == bdat.ShapeList {
		elems := v.Values()
		out := make([]interface{}, len(elems))
		for i, e := range elems {
			var err error
			out[i], err = elementToJSON(col.Type, e)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return elementToJSON(col.Type, v)
}

func elementToJSON(t bdat.ValueType, v bdat.Value) (interface{}, error) {
	switch t {
	case bdat.ValueString, bdat.ValueDebugString:
		return v.String()
	case bdat.ValueFloat, bdat.ValuePercent:
		return v.Float()
	default:
		return v.Int()
	}
}

// valueFromJSON rebuilds a cell value from its JSON form for the column's
// declared type. A ShapeList column expects a JSON array with exactly
// col.Arity elements.
func valueFromJSON(col bdat.Column, raw interface{}) (bdat.Value, error) {
	if col.Shape == bdat.ShapeList {
		arr, ok := raw.([]interface{})
		if !ok {
			return bdat.Value{}, fmt.Errorf("column %s: expected a list cell", col.Name)
		}
		elems := make([]bdat.Value, len(arr))
		for i, raw := range arr {
			v, err := elementFromJSON(col, raw)
			if err != nil {
				return bdat.Value{}, fmt.Errorf("column %s element %d: %w", col.Name, i, err)
			}
			elems[i] = v
		}
		return bdat.NewListValue(col.Type, elems), nil
	}
	return elementFromJSON(col, raw)
}

func elementFromJSON(col bdat.Column, raw interface{}) (bdat.Value, error) {
	switch col.Type {
	case bdat.ValueString, bdat.ValueDebugString:
		s, ok := raw.(string)
		if !ok {
			return bdat.Value{}, fmt.Errorf("column %s: expected string cell", col.Name)
		}
		return bdat.NewStringValue(col.Type, s), nil
	case bdat.ValueFloat:
		f, ok := raw.(float64)
		if !ok {
			return bdat.Value{}, fmt.Errorf("column %s: expected numeric cell", col.Name)
		}
		return bdat.NewFloatValue(float32(f)), nil
	case bdat.ValuePercent:
		f, ok := raw.(float64)
		if !ok {
			return bdat.Value{}, fmt.Errorf("column %s: expected numeric cell", col.Name)
		}
		return bdat.NewPercentValue(uint8(f * 100)), nil
	default:
		f, ok := raw.(float64)
		if !ok {
			return bdat.Value{}, fmt.Errorf("column %s: expected numeric cell", col.Name)
		}
		return bdat.NewIntValue(col.Type, int64(f)), nil
	}
}

func tableToJSON(t *bdat.Table) (jsonTable, error) {
	jt := jsonTable{
		Name:       t.Name.Text,
		NameHash:   t.Name.Hash,
		NameHashed: t.Name.Hashed,
		BaseID:     t.BaseID,
		Columns:    make([]jsonColumn, len(t.Schema)),
	}
	for i, c := range t.Schema {
		jt.Columns[i] = columnToJSON(c)
	}

	jt.Rows = make([]jsonRow, t.RowCount())
	for i := 0; i < t.RowCount(); i++ {
		row, err := t.Row(t.BaseID + uint32(i))
		if err != nil {
			return jsonTable{}, err
		}
		cells := make([]interface{}, len(t.Schema))
		for ci, col := range t.Schema {
			v, err := row.GetIndex(ci)
			if err != nil {
				return jsonTable{}, err
			}
			cells[ci], err = valueToJSON(col, v)
			if err != nil {
				return jsonTable{}, err
			}
		}
		jt.Rows[i] = jsonRow{ID: row.ID, Cells: cells}
	}
	return jt, nil
}

func tableFromJSON(jt jsonTable) (*bdat.Table, error) {
	schema := make(bdat.Schema, len(jt.Columns))
	for i, c := range jt.Columns {
		schema[i] = columnFromJSON(c)
	}

	rows := make([]bdat.Row, len(jt.Rows))
	for i, jr := range jt.Rows {
		cells := make([]bdat.Value, len(schema))
		for ci, col := range schema {
			v, err := valueFromJSON(col, jr.Cells[ci])
			if err != nil {
				return nil, err
			}
			cells[ci] = v
		}
		rows[i] = bdat.NewRow(jr.ID, cells)
	}

	return &bdat.Table{
		Name:   bdat.Name{Text: jt.Name, Hash: jt.NameHash, Hashed: jt.NameHashed},
		Schema: schema,
		BaseID: jt.BaseID,
		Rows:   rows,
	}, nil
}
