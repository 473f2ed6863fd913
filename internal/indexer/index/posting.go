package index

import (
	"math"
	"slices"
	"sort"
)

// MaxDocumentID is the largest id the index accepts. Boolean evaluation
// stores ids in 32-bit roaring bitmaps.
const MaxDocumentID = math.MaxUint32 - 1

// PostingList is an ascending, duplicate-free list of document ids.
type PostingList []int

// Contains reports whether id is in the list.
func (p PostingList) Contains(id int) bool {
	i := sort.SearchInts(p, id)
	return i < len(p) && p[i] == id
}

// Max returns the largest id, or -1 for an empty list.
func (p PostingList) Max() int {
	if len(p) == 0 {
		return -1
	}
	return p[len(p)-1]
}

// ValidDocumentID reports whether id fits the index's id space.
func ValidDocumentID(id int) bool {
	return id >= 0 && id <= MaxDocumentID
}

// normalize sorts ids in place and drops duplicates.
func normalize(ids []int) PostingList {
	slices.Sort(ids)
	return PostingList(slices.Compact(ids))
}
