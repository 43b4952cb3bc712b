package transformer

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movieetl/internal/table"
	"movieetl/pkg/records"
)

func sample(n int) *table.Table {
	rows := make([]records.Record, n)
	for i := range rows {
		rows[i] = records.Record{"id": int64(i)}
	}
	return table.New(table.Schema{{Name: "id", Type: table.Integer}}, rows)
}

// mark appends a column recording the position of the transformer in the chain.
func mark(name string, calls *[]string) Transformer {
	return Func(func(in *table.Table) (*table.Table, error) {
		*calls = append(*calls, name)
		return in.WithColumn(table.Column{Name: name, Type: table.Text}, func(records.Record) any {
			return name
		}), nil
	})
}

func TestChainRunsInOrder(t *testing.T) {
	t.Parallel()

	var calls []string
	c := Chain{mark("a", &calls), mark("b", &calls), mark("c", &calls)}

	out, err := c.Apply(sample(3))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, calls)
	assert.Equal(t, []string{"id", "a", "b", "c"}, out.Schema().Names())
	assert.Equal(t, 3, out.Len())
}

func TestChainEmptyIsIdentity(t *testing.T) {
	t.Parallel()

	in := sample(2)
	out, err := Chain{}.Apply(in)
	require.NoError(t, err)
	assert.Same(t, in, out)
}

func TestChainStopsOnError(t *testing.T) {
	t.Parallel()

	var calls []string
	boom := Func(func(*table.Table) (*table.Table, error) { return nil, errors.New("boom") })
	c := Chain{mark("a", &calls), boom, mark("never", &calls)}

	_, err := c.Apply(sample(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1")
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []string{"a"}, calls)
}

func TestChainDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	var calls []string
	in := sample(2)
	_, err := Chain{mark("x", &calls)}.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, in.Schema().Names())
	_, has := in.Row(0)["x"]
	assert.False(t, has)
}
