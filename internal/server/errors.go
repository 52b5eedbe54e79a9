package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/trmhq/trm/internal/ledger/domain"
	networkdomain "github.com/trmhq/trm/internal/network/domain"
	referraldomain "github.com/trmhq/trm/internal/referral/domain"
	userdomain "github.com/trmhq/trm/internal/user/domain"
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
	Type     string             `json:"type"`
	Message  string             `json:"message"`
	Errors   []ValidationError  `json:"errors,omitempty"`
	Credited []creditedAncestor `json:"credited,omitempty"`
	Failed   []string           `json:"failed,omitempty"`
}

type creditedAncestor struct {
	AncestorID string `json:"ancestor_id"`
	Amount     int64  `json:"amount"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrTooManyRequests    = errors.New("too_many_requests")
	ErrServiceUnavailable = errors.New("service_unavailable")
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

	if pErr := asPartialEarnings(err); pErr != nil {
		payload := errorPayload{
			Type:    "partial_earnings",
			Message: "some ancestor credits failed",
		}
		for _, credit := range pErr.Credited {
			payload.Credited = append(payload.Credited, creditedAncestor{
				AncestorID: credit.AncestorID.String(),
				Amount:     credit.Amount,
			})
		}
		for _, id := range pErr.Failed {
			payload.Failed = append(payload.Failed, id.String())
		}
		return http.StatusInternalServerError, payload
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
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, networkdomain.ErrTransactionAborted):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func asPartialEarnings(err error) *networkdomain.PartialEarningsError {
	var pErr *networkdomain.PartialEarningsError
	if errors.As(err, &pErr) && pErr != nil {
		return pErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, networkdomain.ErrInvalidID),
		errors.Is(err, networkdomain.ErrInvalidAmount),
		errors.Is(err, networkdomain.ErrInvalidOrganization),
		errors.Is(err, userdomain.ErrInvalidID),
		errors.Is(err, userdomain.ErrInvalidName),
		errors.Is(err, userdomain.ErrInvalidEmail),
		errors.Is(err, userdomain.ErrInvalidOrganization),
		errors.Is(err, referraldomain.ErrInvalidID),
		errors.Is(err, referraldomain.ErrInvalidEmail),
		errors.Is(err, referraldomain.ErrInvalidStatus),
		errors.Is(err, referraldomain.ErrInvalidReward),
		errors.Is(err, referraldomain.ErrInvalidOrganization),
		errors.Is(err, ledgerdomain.ErrUnbalancedEntry):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, networkdomain.ErrAlreadyRegistered),
		errors.Is(err, networkdomain.ErrCycleDetected),
		errors.Is(err, userdomain.ErrEmailTaken),
		errors.Is(err, referraldomain.ErrInvalidTransition),
		errors.Is(err, referraldomain.ErrConcurrentUpdate):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, networkdomain.ErrAlreadyRegistered):
		return "member already registered"
	case errors.Is(err, networkdomain.ErrCycleDetected):
		return "cycle detected"
	case errors.Is(err, userdomain.ErrEmailTaken):
		return "email taken"
	case errors.Is(err, referraldomain.ErrInvalidTransition):
		return "invalid status transition"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, networkdomain.ErrParentNotFound),
		errors.Is(err, networkdomain.ErrMemberNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, userdomain.ErrUnknownReferralCode),
		errors.Is(err, referraldomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
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
	default:
		return "invalid value"
	}
}

func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", payload.Type
	case status >= http.StatusBadRequest:
		return "client_error", payload.Type
	default:
		return "", payload.Type
	}
}
