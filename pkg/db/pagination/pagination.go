package pagination

// Pagination is the offset window bound from list query strings.
type Pagination struct {
	Skip  int `form:"skip"`
	Limit int `form:"limit"`
}

type PageInfo struct {
	Skip     int  `json:"skip"`
	Limit    int  `json:"limit"`
	NextSkip int  `json:"next_skip"`
	HasMore  bool `json:"has_more"`
}

// BuildPageInfo expects up to limit+1 rows. The extra row only signals that
// another page exists and is trimmed from the returned slice.
func BuildPageInfo[T any](data []T, skip, limit int) ([]T, *PageInfo) {
	info := &PageInfo{Skip: skip, Limit: limit}
	if limit > 0 && len(data) > limit {
		info.HasMore = true
		data = data[:limit]
	}
	info.NextSkip = skip + len(data)
	return data, info
}
