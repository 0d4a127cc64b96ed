package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"cvix/internal/api/respond"
	"cvix/internal/templates"
)

// DefaultLocale is used when Accept-Language names nothing usable.
const DefaultLocale = "en"

// Locale stores the primary subtag of the caller's preferred language.
func Locale() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(respond.LocaleKey, negotiate(c.GetHeader("Accept-Language")))
		c.Next()
	}
}

func negotiate(header string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return DefaultLocale
	}
	for _, tag := range tags {
		base, _ := tag.Base()
		if nonLanguage[base.String()] {
			continue
		}
		if sub := templates.PrimarySubtag(tag.String()); sub != "" {
			return sub
		}
	}
	return DefaultLocale
}

// nonLanguage lists base subtags naming no concrete language; "*" parses as "mul".
var nonLanguage = map[string]bool{"und": true, "mul": true, "mis": true, "zxx": true}

// GetLocale returns the negotiated locale.
func GetLocale(c *gin.Context) string {
	if s := c.GetString(respond.LocaleKey); s != "" {
		return s
	}
	return DefaultLocale
}
