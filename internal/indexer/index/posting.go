package index

import "github.com/RoaringBitmap/roaring/v2"

// postings maps each gram of one field to the ordinals of the records that
// hold it.
type postings map[string]*roaring.Bitmap

func (p postings) add(values []string, ord uint32) {
	for _, v := range values {
		bm, ok := p[v]
		if !ok {
			bm = roaring.New()
			p[v] = bm
		}
		bm.Add(ord)
	}
}

// remove drops ord from each value's bitmap, deleting bitmaps that empty out.
func (p postings) remove(values []string, ord uint32) {
	for _, v := range values {
		bm, ok := p[v]
		if !ok {
			continue
		}
		bm.Remove(ord)
		if bm.IsEmpty() {
			delete(p, v)
		}
	}
}

// union returns the ordinals holding at least one of values.
func (p postings) union(values []string) *roaring.Bitmap {
	result := roaring.New()
	for _, v := range values {
		if bm, ok := p[v]; ok {
			result.Or(bm)
		}
	}
	return result
}
