// Package codec renders binary payloads as the base64 strings used at the
// JSON boundary (spec.md §4.3.3); it has no decoding counterpart. The base64 codec itself is an
// external collaborator (encoding/base64); this package only shapes the
// request/response structs handlers marshal against.
package codec

import "encoding/base64"

// EncodeValue renders a raw value as the base64 string used in JSON bodies.
func EncodeValue(v []byte) string {
	return base64.StdEncoding.EncodeToString(v)
}


// GetResponse is the body of a successful GET /store/{key}.
type GetResponse struct {
	Value string `json:"value"`
}

// RangeEntry is one (key, value) pair in a range response.
type RangeEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RangeResponse is the body of a successful GET /store.
type RangeResponse struct {
	Results []RangeEntry `json:"results"`
}
