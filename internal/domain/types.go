package domain

type SortMode string

const (
	SortBySize     SortMode = "size"
	SortByPath     SortMode = "path"
	SortByOriginal SortMode = "original"
)
