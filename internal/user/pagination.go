package user

import (
	"math"
	"strconv"
)

const (
	MaxPageSize = 10
	// MaxPage keeps page*size within int.
	MaxPage = math.MaxInt / MaxPageSize
)

// ParsePagination turns raw query values into a page index and size.
// Page falls back to 0 when missing, non-numeric or negative and is capped at
// MaxPage. Size falls back to MaxPageSize when missing, non-numeric, not
// positive or above the limit.
func ParsePagination(rawPage, rawSize string) (page, size int) {
	page, err := strconv.Atoi(rawPage)
	if err != nil || page < 0 {
		page = 0
	}
	if page > MaxPage {
		page = MaxPage
	}
	size, err = strconv.Atoi(rawSize)
	if err != nil || size <= 0 || size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// pageOffset returns the row offset of page, or -1 when it does not fit in an
// int; stores treat a negative offset as past the end.
func pageOffset(page, size int) int {
	if page < 0 || (size > 0 && page > math.MaxInt/size) {
		return -1
	}
	return page * size
}
