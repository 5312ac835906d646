// Package httputil provides shared HTTP response utilities for handlers.
//
// Handler files use these helpers instead of writing raw
// http.ResponseWriter calls, so every endpoint emits the same JSON
// envelope and error structure.
package httputil
