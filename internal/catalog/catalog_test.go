package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gashop/shop-ledger/internal/models"
)

func TestLookup(t *testing.T) {
	c := New([]models.Service{
		{ID: "boost-100", Name: "Profile Boost 100", Price: 50000, Active: true},
		{ID: "retired", Name: "Old Package", Price: 10000, Active: false},
	})

	svc, err := c.Lookup("boost-100")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), svc.Price)

	_, err = c.Lookup("retired")
	assert.ErrorIs(t, err, models.ErrServiceNotFound)

	_, err = c.Lookup("missing")
	assert.ErrorIs(t, err, models.ErrServiceNotFound)
}

func TestListSkipsInactive(t *testing.T) {
	c := New([]models.Service{
		{ID: "b", Active: true},
		{ID: "a", Active: true},
		{ID: "x", Active: false},
	})
	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}
