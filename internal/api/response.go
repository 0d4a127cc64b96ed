package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cvix/internal/api/respond"
	"cvix/internal/errcode"
	"cvix/internal/generr"
)

// invalidBody reports a body that is not a JSON generation request.
func invalidBody(c *gin.Context) {
	respond.AbortDetail(c, http.StatusBadRequest, respond.ErrorDetail{
		Code:    errcode.ValidationFailed,
		Message: respond.Printer(c.GetString(respond.LocaleKey)).Sprintf(respond.MsgInvalidBody),
		Fields:  []generr.FieldError{{Field: "body", Rule: "json"}},
	})
}

func notFound(c *gin.Context) {
	respond.Abort(c, http.StatusNotFound, errcode.NotFound, respond.MsgNotFound)
}
