package gateway

import (
	"encoding/json"
	"math"

	"github.com/roach88/dbgateway/internal/apperr"
	"github.com/roach88/dbgateway/internal/store"
)

// fields collects the first shape error found in a request.
// Only presence is checked; values are never interpreted.
type fields struct {
	err *apperr.Error
}

func (f *fields) str(name, v string) {
	if f.err == nil && v == "" {
		f.err = apperr.MissingField(name)
	}
}

func (f *fields) num(name string, v *int64) {
	if f.err == nil && v == nil {
		f.err = apperr.MissingField(name)
	}
}

func (f *fields) event(ev *store.Event) {
	if f.err != nil {
		return
	}
	if ev == nil {
		f.err = apperr.MissingField("event")
		return
	}
	f.str("event.source", ev.Source)
	f.str("event.type", ev.Type)
	f.str("event.timestamp", ev.Timestamp)
	f.str("event.summary", ev.Summary)
}

func (f *fields) check() error {
	if f.err != nil {
		return f.err
	}
	return nil
}

// primitive converts a decoded JSON value into something the driver can
// bind. Objects and arrays are rejected.
func primitive(field string, v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, int64:
		return x, nil
	case int:
		return int64(x), nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, apperr.InvalidField(field, "a number")
		}
		return f, nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x), nil
		}
		return x, nil
	default:
		return nil, apperr.InvalidField(field, "a string, number, boolean or null")
	}
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
