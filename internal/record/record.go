// Package record defines the materials search result rows and their on-disk
// JSON shape.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Field names of the fixed query projection, in request order.
const (
	FieldMaterialID      = "material_id"
	FieldPrettyFormula   = "pretty_formula"
	FieldSpacegroupNum   = "spacegroup.number"
	FieldBandGap         = "band_gap"
	FieldNSites          = "nsites"
	FieldEnergyAboveHull = "e_above_hull"
	FieldNElements       = "nelements"
)

// Fields is the fixed projection requested from the remote database.
var Fields = []string{
	FieldMaterialID,
	FieldPrettyFormula,
	FieldSpacegroupNum,
	FieldBandGap,
	FieldNSites,
	FieldEnergyAboveHull,
	FieldNElements,
}

// Record is one result row. Only downstream stages interpret the values.
type Record struct {
	MaterialID      string  `json:"material_id"`
	PrettyFormula   string  `json:"pretty_formula"`
	SpacegroupNum   int     `json:"spacegroup.number"`
	BandGap         float64 `json:"band_gap"`
	NSites          int     `json:"nsites"`
	EnergyAboveHull float64 `json:"e_above_hull"`
	NElements       int     `json:"nelements"`
}

// ResultSet is an ordered sequence of records.
type ResultSet []Record

// Encode renders rs as an indented JSON array. A nil set encodes as [].
func Encode(rs ResultSet) ([]byte, error) {
	if rs == nil {
		rs = ResultSet{}
	}
	return json.MarshalIndent(rs, "", "  ")
}

// Decode parses a JSON array of records. Each element must be an object with
// exactly the projected fields, each holding a value of the expected type.
func Decode(data []byte) (ResultSet, error) {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode result set: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("decode result set: expected a JSON array")
	}

	rs := make(ResultSet, 0, len(raw))
	for i, obj := range raw {
		if err := checkFields(obj); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		b, err := json.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		var r Record
		if err := dec.Decode(&r); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		rs = append(rs, r)
	}
	return rs, nil
}

// checkFields verifies obj has every projected field and nothing else.
func checkFields(obj map[string]json.RawMessage) error {
	if obj == nil {
		return fmt.Errorf("expected an object")
	}
	var missing []string
	for _, f := range Fields {
		v, ok := obj[f]
		if !ok || string(v) == "null" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields: %v", missing)
	}
	if len(obj) != len(Fields) {
		var extra []string
		for k := range obj {
			if !isField(k) {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		return fmt.Errorf("unexpected fields: %v", extra)
	}
	return nil
}

func isField(name string) bool {
	for _, f := range Fields {
		if f == name {
			return true
		}
	}
	return false
}
