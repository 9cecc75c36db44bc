// Package events publishes account lifecycle events to external brokers.
package events

import (
	"encoding/json"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-registration"
	"github.com/goliatone/go-registration/activitymap"
)

// Encode returns the JSON form of evt as a normalized activity record.
func Encode(evt registration.Event, opts ...activitymap.Option) ([]byte, error) {
	data, err := json.Marshal(activitymap.Normalize(evt, opts...))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode event")
	}
	return data, nil
}
