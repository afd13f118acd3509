//go:build sonic

package main

import (
	"github.com/bytedance/sonic"
)

var jsonMarshalIndent = sonic.MarshalIndent
var jsonUnmarshal = sonic.Unmarshal
