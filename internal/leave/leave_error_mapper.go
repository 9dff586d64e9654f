package leave

import (
	"errors"

	"gorm.io/gorm"

	leaveerrors "github.com/kevi308111/annualLeaveForm/internal/leave/errors"
)

func mapRepositoryError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return leaveerrors.ErrLeaveNotFound
	}
	return err
}
