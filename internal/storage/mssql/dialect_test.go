package mssql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movieetl/internal/ddl"
	"movieetl/internal/table"
)

func TestDialectQuoteAndTypes(t *testing.T) {
	t.Parallel()

	d := Dialect{}
	assert.Equal(t, "[a]]b]", d.Quote("a]b"))
	assert.Equal(t, "@p3", d.Placeholder(3))

	tests := map[table.Type]string{
		table.Integer:   "BIGINT",
		table.Real:      "FLOAT",
		table.Text:      "NVARCHAR(MAX)",
		table.Boolean:   "BIT",
		table.Date:      "DATE",
		table.Timestamp: "DATETIME2",
		table.TextList:  "NVARCHAR(MAX)",
	}
	for typ, want := range tests {
		assert.Equal(t, want, d.MapType(typ), typ)
	}
}

func TestEnsureTableSQL(t *testing.T) {
	t.Parallel()

	got, err := Dialect{}.EnsureTableSQL(ddl.TableDef{
		FQN:         "dbo.etl_commits",
		IfNotExists: true,
		Columns:     []ddl.ColumnDef{{Name: "version", SQLType: "BIGINT"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "IF OBJECT_ID(N'[dbo].[etl_commits]', N'U') IS NULL\nCREATE TABLE [dbo].[etl_commits] (\n  [version] BIGINT NOT NULL\n)", got)
}

func TestEncodeLists(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `["Action","Sci-Fi"]`, Dialect{}.Encode([]string{"Action", "Sci-Fi"}, table.TextList))
	assert.Equal(t, 2.5, Dialect{}.Encode(2.5, table.Real))
}

func TestNewRepositoryRejectsBadDSN(t *testing.T) {
	t.Parallel()

	_, err := NewRepository(context.Background(), Config{DSN: "sqlserver://host:notaport"})
	require.Error(t, err)
}
