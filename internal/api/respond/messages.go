package respond

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys are the English texts.
const (
	MsgInvalidBody     = "The request body is not valid JSON."
	MsgValidation      = "The résumé failed validation."
	MsgPayloadTooLarge = "The request body exceeds %d bytes."
	MsgForbidden       = "The résumé contains content that is not allowed."
	MsgTemplate        = "The document template could not be prepared."
	MsgCompilation     = "The document could not be compiled."
	MsgTimeout         = "Generating the document took too long."
	MsgTimeoutHint     = "Simplify the résumé and try again."
	MsgCanceled        = "The request was canceled."
	MsgRateLimited     = "Too many requests. Try again in %d seconds."
	MsgUnauthorized    = "Authentication is required."
	MsgNotFound        = "The requested resource does not exist."
	MsgInternal        = "An unexpected error occurred."
)

var (
	supported = []language.Tag{language.English, language.Spanish}
	matcher   = language.NewMatcher(supported)
	messages  = buildCatalog()
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	es := map[string]string{
		MsgInvalidBody:     "El cuerpo de la solicitud no es JSON válido.",
		MsgValidation:      "El currículum no superó la validación.",
		MsgPayloadTooLarge: "El cuerpo de la solicitud supera los %d bytes.",
		MsgForbidden:       "El currículum contiene contenido no permitido.",
		MsgTemplate:        "No se pudo preparar la plantilla del documento.",
		MsgCompilation:     "No se pudo compilar el documento.",
		MsgTimeout:         "La generación del documento tardó demasiado.",
		MsgTimeoutHint:     "Simplifique el currículum e inténtelo de nuevo.",
		MsgCanceled:        "La solicitud fue cancelada.",
		MsgRateLimited:     "Demasiadas solicitudes. Inténtelo de nuevo en %d segundos.",
		MsgUnauthorized:    "Se requiere autenticación.",
		MsgNotFound:        "El recurso solicitado no existe.",
		MsgInternal:        "Se produjo un error inesperado.",
	}
	for key, text := range es {
		_ = b.SetString(language.English, key, key)
		_ = b.SetString(language.Spanish, key, text)
	}
	return b
}

// Printer returns a printer for the closest supported language to locale.
func Printer(locale string) *message.Printer {
	tag, _, _ := matcher.Match(language.Make(locale))
	base, _ := tag.Base()
	return message.NewPrinter(language.Make(base.String()), message.Catalog(messages))
}
