package merge

import "fmt"

// Policy decides how an overwrite field combines with the base field.
type Policy int

const (
	// Merge recurses into records and lists; scalars are replaced.
	Merge Policy = iota
	// MergeKey marks the identity field used to pair list elements. It is
	// never overwritten.
	MergeKey
	// Replace assigns the overwrite value, including explicit nulls.
	Replace
	// Ignore never applies the overwrite value.
	Ignore
	// MergeNullOrDefault behaves like Merge but skips null or zero overwrite values.
	MergeNullOrDefault
	// ReplaceNullOrDefault behaves like Replace but skips null or zero overwrite values.
	ReplaceNullOrDefault
)

func (p Policy) String() string {
	switch p {
	case Merge:
		return "merge"
	case MergeKey:
		return "merge_key"
	case Replace:
		return "replace"
	case Ignore:
		return "ignore"
	case MergeNullOrDefault:
		return "merge_null_or_default"
	case ReplaceNullOrDefault:
		return "replace_null_or_default"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}
