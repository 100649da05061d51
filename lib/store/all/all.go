// Package all is a meta-package that imports every store implementation so
// callers get the full backend registry with one import.
package all

import (
	_ "github.com/lovebughq/ladybug/lib/store/bbolt"
	_ "github.com/lovebughq/ladybug/lib/store/memory"
	_ "github.com/lovebughq/ladybug/lib/store/valkey"
)
