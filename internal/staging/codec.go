package staging

import (
	"fmt"
	"time"

	"feid-go/internal/model"
	"feid-go/internal/tables"
)

// formatVersion is bumped when the staged document layout changes.
const formatVersion = 1

// Value kinds of a taggedValue.
const (
	kindNull = "null"
	kindInt  = "int"
	kindReal = "real"
	kindText = "text"
	kindTime = "time"
)

// taggedValue carries a cell value with its Go type so it survives the JSON
// round trip; plain JSON would turn every number into a float64 and every
// time into a string.
type taggedValue struct {
	Kind string     `json:"k"`
	Int  int64      `json:"i,omitempty"`
	Real float64    `json:"r,omitempty"`
	Text string     `json:"s,omitempty"`
	Time *time.Time `json:"t,omitempty"`
}

type stagedChange struct {
	ID     int64       `json:"id"`
	Column string      `json:"column"`
	Value  taggedValue `json:"value"`
}

type stagedTable struct {
	Created [][]taggedValue `json:"created,omitempty"`
	Changes []stagedChange  `json:"changes,omitempty"`
	Deleted []int64         `json:"deleted,omitempty"`
}

// document is the serialized form of the staged pending state.
type document struct {
	Version int                    `json:"version"`
	Tables  map[string]stagedTable `json:"tables"`
}

func encodeValue(v any) (taggedValue, error) {
	switch x := v.(type) {
	case nil:
		return taggedValue{Kind: kindNull}, nil
	case int64:
		return taggedValue{Kind: kindInt, Int: x}, nil
	case int:
		return taggedValue{Kind: kindInt, Int: int64(x)}, nil
	case float64:
		return taggedValue{Kind: kindReal, Real: x}, nil
	case string:
		return taggedValue{Kind: kindText, Text: x}, nil
	case time.Time:
		t := x.UTC()
		return taggedValue{Kind: kindTime, Time: &t}, nil
	}
	return taggedValue{}, fmt.Errorf("unsupported value type %T", v)
}

func decodeValue(tv taggedValue) (any, error) {
	switch tv.Kind {
	case kindNull:
		return nil, nil
	case kindInt:
		return tv.Int, nil
	case kindReal:
		return tv.Real, nil
	case kindText:
		return tv.Text, nil
	case kindTime:
		if tv.Time == nil {
			return nil, fmt.Errorf("time value without timestamp")
		}
		return tv.Time.UTC(), nil
	}
	return nil, fmt.Errorf("unknown value kind %q", tv.Kind)
}

func encodeDocument(pending map[string]tables.Pending) (*document, error) {
	doc := &document{Version: formatVersion, Tables: make(map[string]stagedTable, len(pending))}
	for name, p := range pending {
		var st stagedTable
		for _, row := range p.Created {
			enc := make([]taggedValue, len(row))
			for i, v := range row {
				tv, err := encodeValue(v)
				if err != nil {
					return nil, fmt.Errorf("%s created row %d: %w", name, row.ID(), err)
				}
				enc[i] = tv
			}
			st.Created = append(st.Created, enc)
		}
		for _, c := range p.Changes {
			tv, err := encodeValue(c.Value)
			if err != nil {
				return nil, fmt.Errorf("%s change %d.%s: %w", name, c.ID, c.Column, err)
			}
			st.Changes = append(st.Changes, stagedChange{ID: c.ID, Column: c.Column, Value: tv})
		}
		st.Deleted = append(st.Deleted, p.Deleted...)
		doc.Tables[name] = st
	}
	return doc, nil
}

func decodeDocument(doc *document) (map[string]tables.Pending, error) {
	if doc.Version != formatVersion {
		return nil, fmt.Errorf("unsupported staging format version %d", doc.Version)
	}
	out := make(map[string]tables.Pending, len(doc.Tables))
	for name, st := range doc.Tables {
		var p tables.Pending
		for _, enc := range st.Created {
			row := make(model.Row, len(enc))
			for i, tv := range enc {
				v, err := decodeValue(tv)
				if err != nil {
					return nil, fmt.Errorf("%s created row: %w", name, err)
				}
				row[i] = v
			}
			p.Created = append(p.Created, row)
		}
		for _, sc := range st.Changes {
			v, err := decodeValue(sc.Value)
			if err != nil {
				return nil, fmt.Errorf("%s change %d.%s: %w", name, sc.ID, sc.Column, err)
			}
			p.Changes = append(p.Changes, model.Change{ID: sc.ID, Column: sc.Column, Value: v})
		}
		p.Deleted = append(p.Deleted, st.Deleted...)
		out[name] = p
	}
	return out, nil
}
