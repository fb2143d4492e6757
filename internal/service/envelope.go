package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"onlinemis-backend/internal/scrapers/onlinemis"

	"github.com/go-playground/validator/v10"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	loginRedirect = "/login"
)

type successEnvelope struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

type errorEnvelope struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Cause    string `json:"cause,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, data any) {
	writeJson(w, http.StatusOK, successEnvelope{Status: statusSuccess, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string, cause error) {
	body := errorEnvelope{Status: statusError, Message: message}
	if cause != nil {
		body.Cause = cause.Error()
	}
	writeJson(w, status, body)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeJson(w, http.StatusUnauthorized, errorEnvelope{
		Status:   statusError,
		Message:  message,
		Redirect: loginRedirect,
	})
}

// badRequestError marks an error caused by the request itself.
type badRequestError struct {
	err error
}

func (e badRequestError) Error() string {
	return e.err.Error()
}

func (e badRequestError) Unwrap() error {
	return e.err
}

func badRequest(format string, args ...any) error {
	return badRequestError{err: fmt.Errorf(format, args...)}
}

// validationMessage flattens validator errors into `field: tag` pairs.
func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	message := "invalid request"
	for i, fieldErr := range errs {
		sep := ", "
		if i == 0 {
			sep = ": "
		}
		message += fmt.Sprintf("%s%s failed '%s'", sep, fieldErr.Field(), fieldErr.Tag())
	}
	return message
}

// statusOf maps an error to the http status and message it is reported
// with. Expired sessions are handled before this by Service.fail.
func statusOf(err error) (int, string) {
	var badRequest badRequestError
	var validation validator.ValidationErrors
	var credentials *onlinemis.CredentialsError
	var transport *onlinemis.TransportError
	var precondition *onlinemis.ProtocolPreconditionError
	var rejected *onlinemis.UpstreamRejectedError
	var drift *onlinemis.SchemaDriftError
	var parse *onlinemis.FieldParseError

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validationMessage(validation)
	case errors.As(err, &badRequest):
		return http.StatusBadRequest, badRequest.Error()
	case errors.As(err, &credentials):
		return http.StatusUnauthorized, credentials.Message
	case errors.As(err, &precondition):
		return http.StatusBadGateway, "login server did not behave as expected"
	case errors.As(err, &transport):
		return http.StatusBadGateway, "could not reach the portal"
	case errors.As(err, &rejected):
		return http.StatusUnprocessableEntity, rejected.Message
	case errors.Is(err, onlinemis.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "file too large"
	case errors.Is(err, onlinemis.ErrUnsupportedFile):
		return http.StatusUnsupportedMediaType, "unsupported file type"
	case errors.As(err, &drift), errors.As(err, &parse):
		return http.StatusInternalServerError, "the portal returned a page that could not be read"
	}
	return http.StatusInternalServerError, "internal error"
}
