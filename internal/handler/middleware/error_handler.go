package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/makkenzo/license-backoffice/internal/domain/apikey"
	"github.com/makkenzo/license-backoffice/internal/domain/device"
	"github.com/makkenzo/license-backoffice/internal/domain/invoice"
	"github.com/makkenzo/license-backoffice/internal/domain/license"
	"github.com/makkenzo/license-backoffice/internal/domain/plan"
	"github.com/makkenzo/license-backoffice/internal/domain/product"
	"github.com/makkenzo/license-backoffice/internal/handler/dto"
	"github.com/makkenzo/license-backoffice/internal/ierr"
	"github.com/makkenzo/license-backoffice/internal/service"
	"go.uber.org/zap"
)

func ErrorHandlerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("ErrorHandler")
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status, errResponse := classify(err)
		if status >= http.StatusInternalServerError {
			log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		} else {
			log.Debug("Request rejected", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
		}

		c.AbortWithStatusJSON(status, errResponse)
	}
}

func classify(err error) (int, dto.APIErrorResponse) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return http.StatusBadRequest, dto.APIErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Input validation failed.",
			Details: buildValidationErrors(ve),
		}
	}

	var issuance *service.IssuanceError
	if errors.As(err, &issuance) {
		return http.StatusInternalServerError, dto.APIErrorResponse{
			Code:    "ISSUANCE_FAILED",
			Message: "The invoice was saved but license issuance did not complete.",
			Details: gin.H{
				"invoice_id":       issuance.InvoiceID,
				"line_item_index":  issuance.LineItemIndex,
				"line_item_id":     issuance.LineItemID,
				"licenses_created": issuance.LicensesCreated,
			},
		}
	}

	switch {
	case errors.Is(err, ierr.ErrValidation):
		return http.StatusBadRequest, dto.APIErrorResponse{Code: "VALIDATION_ERROR", Message: err.Error()}
	case errors.Is(err, ierr.ErrNoCompanyUsers):
		return http.StatusUnprocessableEntity, dto.APIErrorResponse{Code: "NO_COMPANY_USERS", Message: err.Error()}
	case errors.Is(err, ierr.ErrInvalidTransition):
		return http.StatusConflict, dto.APIErrorResponse{Code: "INVALID_TRANSITION", Message: err.Error()}
	case errors.Is(err, ierr.ErrExpiredLicense):
		return http.StatusBadRequest, dto.APIErrorResponse{Code: "EXPIRED_LICENSE", Message: err.Error()}
	case errors.Is(err, ierr.ErrDeviceLimitReached):
		return http.StatusBadRequest, dto.APIErrorResponse{Code: "DEVICE_LIMIT_REACHED", Message: err.Error()}
	case errors.Is(err, ierr.ErrUnauthorized),
		errors.Is(err, ierr.ErrInvalidCredentials),
		errors.Is(err, ierr.ErrInvalidToken),
		errors.Is(err, ierr.ErrTokenInvalidClaims):
		return http.StatusUnauthorized, dto.APIErrorResponse{Code: "UNAUTHENTICATED", Message: "Authentication required or failed."}
	case errors.Is(err, ierr.ErrForbidden):
		return http.StatusForbidden, dto.APIErrorResponse{Code: "FORBIDDEN", Message: "Access denied."}
	case errors.Is(err, ierr.ErrNotFound),
		errors.Is(err, ierr.ErrUserNotFound),
		errors.Is(err, ierr.ErrLicenseNotFound),
		errors.Is(err, ierr.ErrDeviceNotFound),
		errors.Is(err, license.ErrNotFound),
		errors.Is(err, device.ErrNotFound),
		errors.Is(err, invoice.ErrNotFound),
		errors.Is(err, plan.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, apikey.ErrAPIKeyNotFound):
		return http.StatusNotFound, dto.APIErrorResponse{Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, ierr.ErrConflict),
		errors.Is(err, product.ErrDuplicateName),
		errors.Is(err, invoice.ErrDuplicateNumber),
		errors.Is(err, license.ErrDuplicateKey),
		errors.Is(err, device.ErrAlreadyBound):
		return http.StatusConflict, dto.APIErrorResponse{Code: "CONFLICT", Message: err.Error()}
	}

	return http.StatusInternalServerError, dto.APIErrorResponse{
		Code:    "INTERNAL_ERROR",
		Message: "An unexpected error occurred.",
	}
}

func buildValidationErrors(ve validator.ValidationErrors) []dto.FieldError {
	details := make([]dto.FieldError, len(ve))
	for i, fe := range ve {
		details[i] = dto.FieldError{
			Field:   fe.Field(),
			Message: getValidationErrorMsg(fe),
		}
	}
	return details
}

func getValidationErrorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Field '%s' is required", fe.Field())
	case "email":
		return fmt.Sprintf("Field '%s' must be a valid email address", fe.Field())
	case "uuid":
		return fmt.Sprintf("Field '%s' must be a UUID", fe.Field())
	case "oneof":
		return fmt.Sprintf("Field '%s' must be one of [%s]", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("Field '%s' must be greater than or equal to %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("Field '%s' must be less than or equal to %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("Field '%s' must have at least %s items or characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("Field '%s' failed validation on the '%s' tag", fe.Field(), fe.Tag())
	}
}
