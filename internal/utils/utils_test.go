package utils

import (
	"net/http/httptest"
	"testing"
	"time"

	"docchain/filter"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contextForQuery(query string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/documents?"+query, nil)
	return c
}

func TestGetFilterParams_Full(t *testing.T) {
	c := contextForQuery("q=contract&type=application/pdf&tag=legal&tag=hr&owner=u1" +
		"&verified=true&favorite=false&min_size=100&max_size=5000" +
		"&date_from=2024-01-01T00:00:00Z&trashed=true")

	spec := GetFilterParams(c)

	assert.Equal(t, "contract", spec.Query)
	assert.Equal(t, []string{"application/pdf"}, spec.Types)
	assert.Equal(t, []string{"legal", "hr"}, spec.Tags)
	assert.Equal(t, []string{"u1"}, spec.Owners)

	require.NotNil(t, spec.Verified)
	assert.True(t, *spec.Verified)
	require.NotNil(t, spec.Favorite)
	assert.False(t, *spec.Favorite)
	assert.Nil(t, spec.Encrypted, "absent params stay nil")

	require.NotNil(t, spec.MinSize)
	assert.EqualValues(t, 100, *spec.MinSize)
	require.NotNil(t, spec.MaxSize)
	assert.EqualValues(t, 5000, *spec.MaxSize)

	require.NotNil(t, spec.DateFrom)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), spec.DateFrom.UTC())
	assert.Nil(t, spec.DateTo)

	assert.True(t, spec.Trashed)
}

func TestGetFilterParams_Empty(t *testing.T) {
	spec := GetFilterParams(contextForQuery(""))

	assert.Empty(t, spec.Query)
	assert.Empty(t, spec.Tags)
	assert.Nil(t, spec.Verified)
	assert.Nil(t, spec.MinSize)
	assert.Nil(t, spec.DateFrom)
	assert.False(t, spec.Trashed)
}

// TestGetFilterParams_MalformedDropped verifies bad values are ignored, not
// turned into errors
func TestGetFilterParams_MalformedDropped(t *testing.T) {
	c := contextForQuery("verified=maybe&min_size=abc&max_size=-5&date_from=yesterday&trashed=1")

	spec := GetFilterParams(c)

	assert.Nil(t, spec.Verified)
	assert.Nil(t, spec.MinSize)
	assert.Nil(t, spec.MaxSize, "negative sizes are dropped")
	assert.Nil(t, spec.DateFrom)
	assert.False(t, spec.Trashed, "trashed only accepts the literal true")
}

func TestGetSortParams(t *testing.T) {
	assert.Equal(t, filter.Sort{Key: filter.ByTitle, Ascending: true},
		GetSortParams(contextForQuery("sort=title&direction=asc")))

	assert.Equal(t, filter.DefaultSort(), GetSortParams(contextForQuery("")))
}
