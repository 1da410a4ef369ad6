package catalog

import (
	"context"
	"fmt"

	"mediahub.dev/portal/internal/backend"
	"mediahub.dev/portal/internal/content"
)

// FetchFunc loads one page of a category from the backend.
type FetchFunc func(ctx context.Context, id content.CategoryID, limit, offset int) (content.Page, error)

// Endpoints maps every kind to its backend call.
type Endpoints struct {
	Content FetchFunc
	Video   FetchFunc
	Post    FetchFunc
	Event   FetchFunc
}

// BackendEndpoints wires the four category listing calls of client.
func BackendEndpoints(client *backend.Client) Endpoints {
	return Endpoints{
		Content: client.GetContentsByCategoryID,
		Video:   client.GetVideosByCategoryID,
		Post:    client.GetPostsByCategoryID,
		Event:   client.GetEventsByCategoryID,
	}
}

// Validate reports the first kind without an endpoint.
func (e Endpoints) Validate() error {
	for _, kind := range content.Kinds {
		fn, err := e.For(kind)
		if err != nil {
			return err
		}
		if fn == nil {
			return fmt.Errorf("%w: %s", ErrEndpointsMissing, kind)
		}
	}
	return nil
}

// For returns the endpoint serving kind.
func (e Endpoints) For(kind content.Kind) (FetchFunc, error) {
	switch kind {
	case content.KindContent:
		return e.Content, nil
	case content.KindVideo:
		return e.Video, nil
	case content.KindPost:
		return e.Post, nil
	case content.KindEvent:
		return e.Event, nil
	default:
		return nil, fmt.Errorf("%w: %q", content.ErrUnknownKind, kind)
	}
}
