// Package respond writes the JSON error envelope shared by handlers and
// middleware.
package respond

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cvix/internal/errcode"
	"cvix/internal/generr"
	"cvix/internal/resume"
)

const (
	// LocaleKey holds the negotiated response locale in the gin context.
	LocaleKey = "locale"
	// CorrelationHeader carries the request correlation id.
	CorrelationHeader = "X-Correlation-ID"

	// StatusClientClosedRequest is reported when the caller abandons a request.
	StatusClientClosedRequest = 499
)

type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code          int                 `json:"code"`
	Message       string              `json:"message"`
	CorrelationID string              `json:"correlation_id"`
	Fields        []generr.FieldError `json:"fields,omitempty"`
	Retryable     bool                `json:"retryable,omitempty"`
	Hint          string              `json:"hint,omitempty"`
}

// Abort writes an error envelope with a translated message and stops the chain.
func Abort(c *gin.Context, status, code int, key string, args ...any) {
	AbortDetail(c, status, ErrorDetail{Code: code, Message: Printer(c.GetString(LocaleKey)).Sprintf(key, args...)})
}

// AbortDetail writes detail, filling in the correlation id.
func AbortDetail(c *gin.Context, status int, detail ErrorDetail) {
	detail.CorrelationID = c.Writer.Header().Get(CorrelationHeader)
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(status, ErrorBody{Error: detail})
}

// Generation maps a pipeline error to its response. Every kind has exactly
// one status; compiler output, patterns and internal paths are never written.
func Generation(c *gin.Context, err error) {
	p := Printer(c.GetString(LocaleKey))
	kind := generr.KindOf(err)
	gerr, _ := generr.As(err)

	detail := ErrorDetail{Code: errcode.ForKind(kind)}
	var status int
	switch kind {
	case generr.KindValidation:
		status = http.StatusBadRequest
		detail.Message = p.Sprintf(MsgValidation)
		detail.Fields = gerr.Fields
		if isOversize(gerr) {
			status = http.StatusRequestEntityTooLarge
			detail.Code = errcode.PayloadTooLarge
			detail.Message = p.Sprintf(MsgPayloadTooLarge, payloadLimit(gerr))
		}
	case generr.KindSecurity:
		status = http.StatusUnprocessableEntity
		detail.Message = p.Sprintf(MsgForbidden)
		detail.Fields = gerr.Fields
	case generr.KindTemplate:
		status = http.StatusInternalServerError
		detail.Message = p.Sprintf(MsgTemplate)
	case generr.KindCompilation:
		status = http.StatusInternalServerError
		detail.Message = p.Sprintf(MsgCompilation)
	case generr.KindTimeout:
		status = http.StatusGatewayTimeout
		detail.Message = p.Sprintf(MsgTimeout)
		detail.Retryable = true
		detail.Hint = p.Sprintf(MsgTimeoutHint)
	case generr.KindCanceled:
		c.AbortWithStatus(StatusClientClosedRequest)
		return
	case generr.KindUnknown:
		status = http.StatusInternalServerError
		detail.Code = errcode.SystemError
		detail.Message = p.Sprintf(MsgInternal)
	}
	AbortDetail(c, status, detail)
}

func isOversize(e *generr.Error) bool {
	return e != nil && len(e.Fields) == 1 && e.Fields[0].Field == "body" && e.Fields[0].Rule == "max_bytes"
}

func payloadLimit(e *generr.Error) int {
	if n, err := strconv.Atoi(e.Fields[0].Param); err == nil {
		return n
	}
	return resume.MaxPayloadBytes
}

// IsBodyTooLarge reports whether err came from an http.MaxBytesReader.
func IsBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
