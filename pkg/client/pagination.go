package client

import "context"

// EndCursor is the sentinel next_cursor value (base64 of "-1") that
// terminates pagination.
const EndCursor = "LTE="

// Page is the server's pagination envelope.
type Page[T any] struct {
	Data       []T    `json:"data"`
	NextCursor string `json:"next_cursor"`
	Limit      int    `json:"limit"`
	Count      int    `json:"count"`
}

// Paginate walks a cursor-paginated endpoint until the sentinel cursor
// and returns the flattened items. fetch receives an empty cursor for
// the first page.
func Paginate[T any](ctx context.Context, fetch func(ctx context.Context, cursor string) (*Page[T], error)) ([]T, error) {
	var items []T
	cursor := ""
	for {
		page, err := fetch(ctx, cursor)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Data...)
		if page.NextCursor == "" || page.NextCursor == EndCursor {
			return items, nil
		}
		cursor = page.NextCursor
	}
}
