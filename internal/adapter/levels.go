package adapter

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/bookfeed/internal/model"
)

// wireLevel is one book entry as sent by a venue: [price, qty, ...] or
// [action, price, qty]. Numbers may be JSON strings or JSON numbers.
type wireLevel []json.RawMessage

// parseNumber decodes a quoted or bare JSON number.
func parseNumber(raw json.RawMessage) (decimal.Decimal, bool) {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// parseLevel decodes one entry. Deleted or unparseable entries yield ok=false.
func parseLevel(entry wireLevel) (model.Level, bool) {
	if len(entry) >= 3 {
		var action string
		if err := json.Unmarshal(entry[0], &action); err == nil {
			if _, numeric := parseNumber(entry[0]); !numeric {
				if action == "delete" {
					return model.Level{}, false
				}
				entry = entry[1:]
			}
		}
	}
	if len(entry) < 2 {
		return model.Level{}, false
	}

	price, ok := parseNumber(entry[0])
	if !ok {
		return model.Level{}, false
	}
	qty, ok := parseNumber(entry[1])
	if !ok {
		return model.Level{}, false
	}

	l := model.Level{Price: price.InexactFloat64(), Quantity: qty.InexactFloat64()}
	return l, l.Valid()
}

// parseSide decodes entries, keeps valid levels and sorts them, descending
// for bids and ascending for asks.
func parseSide(entries []wireLevel, descending bool) []model.Level {
	if len(entries) == 0 {
		return nil
	}
	out := make([]model.Level, 0, len(entries))
	for _, e := range entries {
		if l, ok := parseLevel(e); ok {
			out = append(out, l)
		}
	}
	if descending {
		sort.Slice(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	}
	return out
}

// parseMillis decodes a millisecond epoch timestamp given as a string or
// number. Missing or invalid values yield the zero time.
func parseMillis(raw json.RawMessage) time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}
	}
	d, ok := parseNumber(raw)
	if !ok || !d.IsPositive() {
		return time.Time{}
	}
	return time.UnixMilli(d.IntPart())
}

// hasPayload reports whether a raw JSON field is present and not null.
func hasPayload(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null"
}
