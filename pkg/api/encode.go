package api

import (
	"sort"

	"github.com/go-faster/jx"

	"github.com/jordigilh/docflow/pkg/eventbus"
)

// encodeEvent writes an eventbus.Event as the wire envelope from
// spec.md §6's real-time channel using go-faster/jx's low-allocation
// writer, matching the teacher's own jx-based encoding of its
// generated OpenAPI server responses.
func encodeEvent(event eventbus.Event) []byte {
	var w jx.Writer
	w.Obj(func(w *jx.Writer) {
		w.FieldStart("kind")
		w.Str(string(event.Kind))

		w.FieldStart("document_id")
		w.Str(event.DocumentID)

		w.FieldStart("timestamp")
		w.Str(event.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"))

		w.FieldStart("payload")
		writeAny(w, event.Payload)
	})
	return w.Buf
}

// writeAny encodes the dynamic per-kind payload values named in
// spec.md §6's message table. Keys are sorted so identical payloads
// always serialize identically, which keeps event-log-based tests
// deterministic.
func writeAny(w *jx.Writer, v any) {
	switch val := v.(type) {
	case nil:
		w.Null()
	case string:
		w.Str(val)
	case bool:
		w.Bool(val)
	case int:
		w.Int(val)
	case int64:
		w.Int64(val)
	case float64:
		w.Float64(val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		w.Obj(func(w *jx.Writer) {
			for _, k := range keys {
				w.FieldStart(k)
				writeAny(w, val[k])
			}
		})
	case []any:
		w.Arr(func(w *jx.Writer) {
			for _, item := range val {
				writeAny(w, item)
			}
		})
	default:
		w.Null()
	}
}
