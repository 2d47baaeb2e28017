package directory

import (
	"bytes"
	_ "embed"
)

//go:embed providers.json
var defaultCatalog []byte

// LoadDefault loads the catalog shipped with the binary.
func (d *Directory) LoadDefault() error {
	return d.Load(bytes.NewReader(defaultCatalog))
}
