// Package all registers every built-in source scheme.
package all

import (
	_ "movieetl/internal/datasource/file"
	_ "movieetl/internal/datasource/httpds"
	_ "movieetl/internal/datasource/s3ds"
)
