package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/ierr"
)

// requestTime is read once per request and passed down to the services.
var requestTime = func() time.Time { return time.Now().UTC() }

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		_ = c.Error(fmt.Errorf("%w: invalid %s format", ierr.ErrValidation, name))
		return uuid.Nil, false
	}
	return id, true
}

// bindError keeps validator errors intact so the error middleware can report
// field details; malformed bodies become plain validation failures.
func bindError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return err
	}
	return fmt.Errorf("%w: %v", ierr.ErrValidation, err)
}
