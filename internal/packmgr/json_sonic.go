//go:build sonic

package packmgr

import "github.com/bytedance/sonic"

// for imroc/req and the archive descriptors
var jsonMarshal = sonic.Marshal
var jsonUnmarshal = sonic.Unmarshal
