package handler

import (
	"fmt"
	"time"

	"micro-savings-wallet/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const dateOnly = "2006-01-02"

// userIDParam parses the :userId path parameter.
func userIDParam(c *gin.Context) (uuid.UUID, error) {
	raw := c.Param("userId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.Validation(fmt.Sprintf("Invalid userId: %q", raw))
	}
	return id, nil
}

// parseTime accepts RFC3339 timestamps or plain dates (midnight UTC).
func parseTime(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(dateOnly, raw); err == nil {
		return &t, nil
	}
	return nil, apperror.Validation(fmt.Sprintf("Invalid %s: expected RFC3339 or YYYY-MM-DD", field))
}

// bindError converts a gin binding failure into a validation error.
func bindError(err error) error {
	return apperror.Validation(err.Error())
}
