package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterNormalize_Defaults(t *testing.T) {
	var f Filter
	require.NoError(t, f.Normalize())
	assert.Equal(t, SortByCreatedAt, f.SortBy)
	assert.Equal(t, SortDesc, f.SortDir)
}

func TestFilterNormalize_Invalid(t *testing.T) {
	f := Filter{SortBy: SortKey("owner_id")}
	assert.Error(t, f.Normalize())

	f = Filter{SortDir: SortDirection("descending")}
	assert.Error(t, f.Normalize())

	after := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	before := after.Add(-24 * time.Hour)
	f = Filter{CreatedAfter: &after, CreatedBefore: &before}
	assert.Error(t, f.Normalize())
}

func TestToSortKey(t *testing.T) {
	for _, valid := range []string{"created_at", "total"} {
		_, err := ToSortKey(valid)
		assert.NoError(t, err)
	}
	_, err := ToSortKey("total; DROP TABLE orders")
	assert.Error(t, err)
}

func TestPageNormalize(t *testing.T) {
	tests := []struct {
		name     string
		in       Page
		wantNum  int
		wantSize int
	}{
		{"zero value", Page{}, 1, 20},
		{"negative", Page{Number: -3, Size: -1}, 1, 20},
		{"oversized", Page{Number: 2, Size: 500}, 2, 100},
		{"in range", Page{Number: 4, Size: 50}, 4, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Normalize()
			assert.Equal(t, tt.wantNum, tt.in.Number)
			assert.Equal(t, tt.wantSize, tt.in.Size)
		})
	}
}

func TestPageOffset(t *testing.T) {
	assert.Equal(t, 0, Page{Number: 1, Size: 20}.Offset())
	assert.Equal(t, 40, Page{Number: 3, Size: 20}.Offset())
}
