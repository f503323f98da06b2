package adapter_test

import (
	"testing"

	"github.com/leapstack-labs/tablescribe/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/tablescribe/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/tablescribe/pkg/adapters/mysql"
	_ "github.com/leapstack-labs/tablescribe/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/tablescribe/pkg/adapters/sqlite"
	_ "github.com/leapstack-labs/tablescribe/pkg/adapters/sqlserver"
)

func TestListAdapters(t *testing.T) {
	adapters := adapter.ListAdapters()

	for _, name := range []string{"duckdb", "mysql", "postgres", "sqlite", "sqlserver"} {
		assert.Contains(t, adapters, name)
	}
}

func TestIsRegistered(t *testing.T) {
	tests := []struct {
		name        string
		adapterName string
		expected    bool
	}{
		{"postgres registered", "postgres", true},
		{"sqlite registered", "sqlite", true},
		{"unknown not registered", "unknown_db", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.IsRegistered(tt.adapterName), "IsRegistered(%q)", tt.adapterName)
		})
	}
}

func TestNewAdapter_Success(t *testing.T) {
	adp, err := adapter.NewAdapter(adapter.Config{Type: "sqlite", Path: ":memory:"}, nil)
	require.NoError(t, err)
	require.NotNil(t, adp)
	assert.Equal(t, "sqlite", adp.Dialect().Name)
}

func TestNewAdapter_UnknownType_ListsAvailable(t *testing.T) {
	_, err := adapter.NewAdapter(adapter.Config{Type: "oracle"}, nil)

	var unknownErr *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &unknownErr)
	assert.Contains(t, unknownErr.Available, "postgres")
}
