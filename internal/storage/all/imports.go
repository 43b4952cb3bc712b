// Package all registers every built-in storage backend. Import it for side
// effects:
//
//	import _ "movieetl/internal/storage/all"
//
// Kinds: sqlite, postgres, mssql, mysql, parquet.
package all

import (
	_ "movieetl/internal/storage/mssql"
	_ "movieetl/internal/storage/mysql"
	_ "movieetl/internal/storage/parquet"
	_ "movieetl/internal/storage/postgres"
	_ "movieetl/internal/storage/sqlite"
)
