package config

import (
	"bytes"
	"fmt"

	"github.com/tailscale/hujson"
)

// standardize converts a JSONC document to plain JSON. Line and block
// comments and trailing commas are accepted. Comments are replaced by
// whitespace, so decoder error offsets still point at the right line.
func standardize(data []byte) ([]byte, error) {
	// hujson may rewrite comment bytes in place.
	out, err := hujson.Standardize(bytes.Clone(data))
	if err != nil {
		return nil, fmt.Errorf("strip comments: %w", err)
	}
	return out, nil
}
