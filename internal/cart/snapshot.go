package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/xeipuuv/gojsonschema"
)

// SnapshotVersion is the only persisted cart layout this service reads.
const SnapshotVersion = 1

var ErrCorruptSnapshot = errors.New("corrupt cart snapshot")

const snapshotSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "lines"],
  "properties": {
    "version": {"const": 1},
    "lines": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["item_id", "unit_price", "quantity"],
        "properties": {
          "item_id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "unit_price": {
            "type": ["string", "number"],
            "pattern": "^[0-9]+(\\.[0-9]+)?$",
            "minimum": 0
          },
          "quantity": {"type": "integer", "minimum": 1, "maximum": 9999},
          "stock_limit": {"type": "integer", "minimum": 0}
        }
      }
    }
  }
}`

var schema *gojsonschema.Schema

func init() {
	var err error
	schema, err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(snapshotSchema))
	if err != nil {
		panic(fmt.Sprintf("cart snapshot schema: %v", err))
	}
}

type snapshot struct {
	Version int               `json:"version"`
	Lines   []domain.CartLine `json:"lines"`
}

// EncodeSnapshot serializes the whole cart. Slots are always overwritten wholesale.
func EncodeSnapshot(c *Cart) ([]byte, error) {
	data, err := json.Marshal(snapshot{Version: SnapshotVersion, Lines: c.Lines()})
	if err != nil {
		return nil, fmt.Errorf("marshal cart snapshot failed: %w", err)
	}
	return data, nil
}

// DecodeSnapshot validates data against the snapshot schema and rebuilds the cart.
// Any mismatch returns ErrCorruptSnapshot; callers reset to an empty cart.
func DecodeSnapshot(data []byte) (*Cart, error) {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrCorruptSnapshot, strings.Join(msgs, "; "))
	}

	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	c, err := FromLines(s.Lines)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return c, nil
}
