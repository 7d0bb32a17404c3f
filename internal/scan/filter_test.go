package scan

import "github.com/starford/quire/internal/storage"

var _ storage.Filter = filter{}
