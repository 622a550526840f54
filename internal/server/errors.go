package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	authdomain "github.com/smallbiznis/tillway/internal/auth/domain"
	catalogdomain "github.com/smallbiznis/tillway/internal/catalog/domain"
	customerdomain "github.com/smallbiznis/tillway/internal/customer/domain"
	loyaltydomain "github.com/smallbiznis/tillway/internal/loyalty/domain"
	salesdomain "github.com/smallbiznis/tillway/internal/sales/domain"
	"github.com/smallbiznis/tillway/internal/sharding"
	storedomain "github.com/smallbiznis/tillway/internal/store/domain"
	"github.com/smallbiznis/tillway/internal/tenant"
	unifieddomain "github.com/smallbiznis/tillway/internal/unified/domain"
)

// apiError is the JSON error envelope returned by every endpoint.
type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func (e apiError) Error() string { return e.Code }

// ErrUnauthorized is returned when no valid session accompanies a request.
var ErrUnauthorized = apiError{Status: http.StatusUnauthorized, Code: "unauthorized"}

func invalidRequestError() apiError {
	return apiError{Status: http.StatusBadRequest, Code: "invalid_request"}
}

func newValidationError(field, code, message string) apiError {
	return apiError{Status: http.StatusBadRequest, Code: code, Message: field + ": " + message}
}

// statusFor maps domain errors onto HTTP statuses. Unknown errors become an
// opaque 500 so internals never leak to callers.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storedomain.ErrStoreNotFound),
		errors.Is(err, catalogdomain.ErrProductNotFound),
		errors.Is(err, catalogdomain.ErrRecordNotFound),
		errors.Is(err, salesdomain.ErrSaleNotFound),
		errors.Is(err, customerdomain.ErrCustomerNotFound),
		errors.Is(err, unifieddomain.ErrRecordNotFound),
		errors.Is(err, loyaltydomain.ErrCustomerNotEnrolled):
		return http.StatusNotFound

	case errors.Is(err, storedomain.ErrDuplicateStore),
		errors.Is(err, catalogdomain.ErrDuplicateName),
		errors.Is(err, catalogdomain.ErrDuplicateBarcode),
		errors.Is(err, salesdomain.ErrDuplicateInvoice),
		errors.Is(err, salesdomain.ErrAlreadyReturned),
		errors.Is(err, authdomain.ErrDuplicateUsername):
		return http.StatusConflict

	case errors.Is(err, catalogdomain.ErrInsufficientStock),
		errors.Is(err, loyaltydomain.ErrInsufficientPoints),
		errors.Is(err, loyaltydomain.ErrBelowMinPurchase):
		return http.StatusUnprocessableEntity

	case errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionNotFound):
		return http.StatusUnauthorized

	case errors.Is(err, sharding.ErrShardConnection):
		return http.StatusServiceUnavailable

	case errors.Is(err, storedomain.ErrStoreIDRequired),
		errors.Is(err, storedomain.ErrInvalidPrefix),
		errors.Is(err, storedomain.ErrInvalidName),
		errors.Is(err, storedomain.ErrShardNotAssigned),
		errors.Is(err, tenant.ErrStoreIDRequired),
		errors.Is(err, tenant.ErrUnknownEntity),
		errors.Is(err, tenant.ErrInvalidPrefix),
		errors.Is(err, tenant.ErrCollectionNameTooLong),
		errors.Is(err, sharding.ErrInvalidShardID),
		errors.Is(err, catalogdomain.ErrInvalidName),
		errors.Is(err, catalogdomain.ErrInvalidBarcode),
		errors.Is(err, salesdomain.ErrEmptySale),
		errors.Is(err, salesdomain.ErrInvalidQuantity),
		errors.Is(err, customerdomain.ErrInvalidName),
		errors.Is(err, customerdomain.ErrInvalidAmount),
		errors.Is(err, unifieddomain.ErrStoreIDRequired),
		errors.Is(err, unifieddomain.ErrInvalidName),
		errors.Is(err, unifieddomain.ErrInvalidAmount),
		errors.Is(err, loyaltydomain.ErrIdentifierRequired),
		errors.Is(err, loyaltydomain.ErrCustomerIDRequired),
		errors.Is(err, loyaltydomain.ErrStoreIDRequired),
		errors.Is(err, loyaltydomain.ErrInvalidPoints),
		errors.Is(err, authdomain.ErrUsernameRequired),
		errors.Is(err, authdomain.ErrPasswordTooShort):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// AbortWithError writes the JSON error envelope and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	var api apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.Status, api)
		return
	}

	status := statusFor(err)
	body := apiError{Status: status, Code: "internal_error"}
	if status != http.StatusInternalServerError {
		body.Code = rootCode(err)
	}
	c.AbortWithStatusJSON(status, body)
}

// rootCode unwraps to the sentinel so the client sees the stable code, not
// the wrapped context.
func rootCode(err error) string {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err.Error()
		}
		err = unwrapped
	}
}
