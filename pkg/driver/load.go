package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/chinchliff/oti/pkg/fixture"
	"github.com/chinchliff/oti/pkg/utils"
)

// LoadStudies writes studies through loader, at most concurrency at a time.
// A non-positive concurrency uses utils.GetSemaphoreLimit. It returns how
// many studies were written and the joined errors of those that were not.
func LoadStudies(ctx context.Context, loader StudyLoader, studies []fixture.Study, concurrency int) (int, error) {
	fns := make([]func() error, len(studies))
	for i, study := range studies {
		fns[i] = func() error {
			if err := loader.LoadStudy(ctx, study); err != nil {
				return fmt.Errorf("failed to load study %s: %w", study.StudyID, err)
			}
			return nil
		}
	}

	errs := utils.SemaphoreGather(ctx, concurrency, fns...)
	loaded := 0
	for _, err := range errs {
		if err == nil {
			loaded++
		}
	}
	return loaded, errors.Join(errs...)
}
