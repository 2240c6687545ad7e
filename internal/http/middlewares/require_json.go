package middlewares

import (
	"mime"
	"net/http"

	"github.com/geocoder89/authgate/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

// RequireJSON rejects write requests that carry a non-JSON body.
// Bodiless requests such as sign-out pass through.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if c.Request.ContentLength == 0 {
				break
			}

			if !isJSON(c.GetHeader("Content-Type")) {
				handlers.RespondUnsupportedMediaType(c, "Content-Type must be application/json")
				return
			}
		}
		c.Next()
	}
}

// isJSON accepts application/json with optional parameters such as charset.
func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}
