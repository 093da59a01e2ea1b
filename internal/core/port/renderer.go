package port

import (
	"github.com/seqlab/taxhist/internal/core/domain"
)

// ChartRenderer writes a visualization of a merged level table to path.
// The image format is chosen from the path's extension.
type ChartRenderer interface {
	Render(merged *domain.Frame, path string) error
}
