package loader

import (
	"github.com/lunixbochs/bootcorn/go/elf32"
	"github.com/lunixbochs/bootcorn/go/models"
)

// Footprint returns the page aligned range covering every write Load makes
// with a zero bias. An image with nothing to load is a format error.
func Footprint(m *elf32.Map) (lo, hi uint64, err error) {
	writes, err := plan(m, 0)
	if err != nil {
		return 0, 0, err
	}
	var span *models.Segment
	for _, w := range writes {
		s := &models.Segment{Start: w.addr, End: w.addr + w.size()}
		if s.Size() == 0 {
			continue
		}
		if span == nil {
			span = s
		} else {
			span.Merge(s)
		}
	}
	if span == nil {
		return 0, 0, models.Formatf("image has no loadable segments")
	}
	return models.AlignDown(span.Start), models.AlignUp(span.End), nil
}
