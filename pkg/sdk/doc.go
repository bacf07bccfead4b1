// Package observatory provides a Go client for the file observatory search
// API: query compilation, result-window paging, facet aggregations,
// suggestions, geospatial binning, and portable analyst configuration.
//
//	client := observatory.New("http://localhost:8080")
//	state, _ := client.Search(ctx, "creator:acrobat")
//	state, _ = client.SetFilters(ctx, []observatory.Filter{
//	    {Name: "mime", Value: "application/pdf"},
//	})
//	state, _ = client.Window(ctx, 250, 250)
//
// Every mutating call returns the engine's full state snapshot, so callers
// always render from the server's view rather than a local reconstruction.
package observatory
