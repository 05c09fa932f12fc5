package alert

import (
	"context"

	"github.com/vesseleye/internal/models"
)

// Pager escalates a newly opened alert to whoever is on call. sent reports
// whether a page actually went out.
type Pager interface {
	Page(ctx context.Context, alert *models.Alert, vessel *models.Vessel) (sent bool, err error)
}

// NoopPager never pages.
type NoopPager struct{}

func (NoopPager) Page(context.Context, *models.Alert, *models.Vessel) (bool, error) {
	return false, nil
}

// PagerFunc adapts a function to Pager.
type PagerFunc func(ctx context.Context, alert *models.Alert, vessel *models.Vessel) (bool, error)

func (f PagerFunc) Page(ctx context.Context, alert *models.Alert, vessel *models.Vessel) (bool, error) {
	return f(ctx, alert, vessel)
}
