// Package api carries the ledger's OpenAPI document inside the binary.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
