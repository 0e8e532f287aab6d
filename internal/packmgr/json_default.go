//go:build !sonic

package packmgr

import "github.com/goccy/go-json"

// for imroc/req and the archive descriptors
var jsonMarshal = json.Marshal
var jsonUnmarshal = json.Unmarshal
