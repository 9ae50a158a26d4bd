// Package diag encodes snapshots of coroutine backends for debugging tools.
// Snapshots are protobuf Struct values so any protobuf aware tool can read
// them; MarshalJSON renders the canonical protojson form.
package diag

import (
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/stealthrocket/coro"
)

// Snapshot builds a Struct describing the coroutines and the resource
// counters of a backend:
//
//	{
//	  "stats": {"created": 3, "destroyed": 1, "live": 2, "workers": 2},
//	  "coroutines": [
//	    {"handle": "coro(0.1)", "name": "menu", "state": "suspended", "yields": 12}
//	  ]
//	}
func Snapshot(infos []coro.Info, stats coro.Stats) *structpb.Struct {
	coroutines := make([]*structpb.Value, len(infos))
	for i, info := range infos {
		coroutines[i] = structpb.NewStructValue(&structpb.Struct{
			Fields: map[string]*structpb.Value{
				"handle": structpb.NewStringValue(info.Handle.String()),
				"name":   structpb.NewStringValue(info.Name),
				"state":  structpb.NewStringValue(info.State.String()),
				"yields": structpb.NewNumberValue(float64(info.Yields)),
			},
		})
	}
	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			"stats": structpb.NewStructValue(&structpb.Struct{
				Fields: map[string]*structpb.Value{
					"created":   structpb.NewNumberValue(float64(stats.Created)),
					"destroyed": structpb.NewNumberValue(float64(stats.Destroyed)),
					"live":      structpb.NewNumberValue(float64(stats.Live)),
					"workers":   structpb.NewNumberValue(float64(stats.Workers)),
				},
			}),
			"coroutines": structpb.NewListValue(&structpb.ListValue{Values: coroutines}),
		},
	}
}

// Inspect takes a snapshot of a backend.
func Inspect(i coro.Inspector) *structpb.Struct {
	return Snapshot(i.Inspect(), i.Stats())
}

// MarshalJSON renders a snapshot of the backend as indented JSON.
func MarshalJSON(i coro.Inspector) ([]byte, error) {
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(Inspect(i))
}
