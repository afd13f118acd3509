//go:build !sonic

package main

import (
	"github.com/goccy/go-json"
)

var jsonMarshalIndent = json.MarshalIndent
var jsonUnmarshal = json.Unmarshal
