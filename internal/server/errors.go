package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	auditdomain "github.com/smallbiznis/bookkeeper/internal/audit/domain"
	balancedomain "github.com/smallbiznis/bookkeeper/internal/balance/domain"
	voucherdomain "github.com/smallbiznis/bookkeeper/internal/voucher/domain"
	"github.com/smallbiznis/bookkeeper/pkg/calendar"
	storage "github.com/smallbiznis/bookkeeper/pkg/db"
	"github.com/smallbiznis/bookkeeper/pkg/db/pagination"
	"github.com/smallbiznis/bookkeeper/pkg/money"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

// bindError keeps validator tag failures and collapses everything else
// (malformed JSON, wrong types) into invalid_request.
func bindError(err error) error {
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		return vErrs
	}
	return invalidRequestError()
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var tagErrs validator.ValidationErrors
	if errors.As(err, &tagErrs) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  fromValidator(tagErrs),
		}
	}

	var entryErr *voucherdomain.EntryError
	if errors.As(err, &entryErr) {
		fieldErr := ValidationError{
			Field:   fmt.Sprintf("entries[%d].%s", entryErr.Index, entryErr.Field),
			Code:    entryErr.Reason,
			Message: entryErr.Error(),
		}
		if errors.Is(err, voucherdomain.ErrInvalidEntry) {
			return http.StatusUnprocessableEntity, errorPayload{
				Type:    "integrity_error",
				Message: "invalid entry",
				Errors:  []ValidationError{fieldErr},
			}
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  []ValidationError{fieldErr},
		}
	}

	var unbalanced *voucherdomain.UnbalancedError
	if errors.As(err, &unbalanced) {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "integrity_error",
			Message: "voucher debits and credits do not balance",
			Errors: []ValidationError{{
				Field:   "entries",
				Code:    voucherdomain.ErrUnbalancedVoucher.Error(),
				Message: fmt.Sprintf("debit %s, credit %s", money.Format(unbalanced.Debit), money.Format(unbalanced.Credit)),
			}},
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isIntegrityError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "integrity_error",
			Message: err.Error(),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, storage.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:      "storage_unavailable",
			Message:   "storage unavailable",
			Retryable: true,
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code recorded on the request log line.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func fromValidator(errs validator.ValidationErrors) []ValidationError {
	out := make([]ValidationError, 0, len(errs))
	for _, fe := range errs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Code:    fe.Tag(),
			Message: fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()),
		})
	}
	return out
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, calendar.ErrInvalidDate),
		errors.Is(err, pagination.ErrInvalidPageToken):
		return true
	case errors.Is(err, accountdomain.ErrInvalidID),
		errors.Is(err, accountdomain.ErrInvalidName),
		errors.Is(err, accountdomain.ErrInvalidGroupType),
		errors.Is(err, accountdomain.ErrInvalidSide),
		errors.Is(err, accountdomain.ErrInvalidAmount):
		return true
	case errors.Is(err, voucherdomain.ErrInvalidType),
		errors.Is(err, voucherdomain.ErrInvalidID),
		errors.Is(err, voucherdomain.ErrInvalidAmount),
		errors.Is(err, voucherdomain.ErrInvalidIdempotencyKey),
		errors.Is(err, voucherdomain.ErrInvalidPageToken):
		return true
	case errors.Is(err, balancedomain.ErrInvalidID),
		errors.Is(err, balancedomain.ErrInvalidDateRange):
		return true
	case errors.Is(err, auditdomain.ErrInvalidAction),
		errors.Is(err, auditdomain.ErrInvalidPageToken):
		return true
	default:
		return false
	}
}

func isIntegrityError(err error) bool {
	switch {
	case errors.Is(err, voucherdomain.ErrUnbalancedVoucher),
		errors.Is(err, voucherdomain.ErrInvalidEntry),
		errors.Is(err, voucherdomain.ErrEmptyVoucher),
		errors.Is(err, accountdomain.ErrInvalidGroup):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, accountdomain.ErrLedgerHasPosting),
		errors.Is(err, accountdomain.ErrDuplicateLedger),
		errors.Is(err, accountdomain.ErrDuplicateGroup),
		errors.Is(err, voucherdomain.ErrAlreadyReversed),
		errors.Is(err, voucherdomain.ErrIdempotencyKeyReused):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, accountdomain.ErrNotFound),
		errors.Is(err, voucherdomain.ErrNotFound),
		errors.Is(err, balancedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, accountdomain.ErrInvalidAmount), errors.Is(err, voucherdomain.ErrInvalidAmount):
		return "invalid_amount"
	default:
		return strings.SplitN(err.Error(), ":", 2)[0]
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_date":
		return "date must be YYYY-MM-DD"
	case "invalid_date_range":
		return "from must not be after to"
	case "invalid_amount":
		return "amount must be a decimal with at most two fractional digits"
	default:
		return "invalid value"
	}
}
