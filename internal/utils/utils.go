package utils

import (
	"strconv"
	"time"

	"docchain/filter"

	"github.com/gin-gonic/gin"
)

// GetFilterParams parses the documents list query string into a filter spec.
// Unknown or malformed values are dropped rather than rejected.
func GetFilterParams(c *gin.Context) *filter.Spec {
	spec := &filter.Spec{
		Query:  c.Query("q"),
		Types:  c.QueryArray("type"),
		Tags:   c.QueryArray("tag"),
		Owners: c.QueryArray("owner"),
	}

	spec.Verified = boolParam(c, "verified")
	spec.Encrypted = boolParam(c, "encrypted")
	spec.Favorite = boolParam(c, "favorite")
	spec.SharedWithMe = boolParam(c, "shared_with_me")

	spec.MinSize = sizeParam(c, "min_size")
	spec.MaxSize = sizeParam(c, "max_size")

	spec.DateFrom = dateParam(c, "date_from")
	spec.DateTo = dateParam(c, "date_to")

	spec.Trashed = c.Query("trashed") == "true"

	return spec
}

// GetSortParams parses sort key and direction.
func GetSortParams(c *gin.Context) filter.Sort {
	return filter.ParseSort(c.Query("sort"), c.Query("direction"))
}

func boolParam(c *gin.Context, key string) *bool {
	raw, ok := c.GetQuery(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &b
}

func sizeParam(c *gin.Context, key string) *int64 {
	raw, ok := c.GetQuery(key)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func dateParam(c *gin.Context, key string) *time.Time {
	raw, ok := c.GetQuery(key)
	if !ok {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}
