package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"flashdeck-backend-go/internal/config"
)

// CORSMiddleware allows the origins listed in CLIENT_URL (comma separated).
func CORSMiddleware(appConfig *config.Config) gin.HandlerFunc {
	if appConfig == nil || strings.TrimSpace(appConfig.ClientURL) == "" {
		panic("ClientURL for CORS is not configured")
	}

	// CLIENT_URL may list several origins, e.g. the web app and a local dev server.
	var origins []string
	for _, origin := range strings.Split(appConfig.ClientURL, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", UserIDHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
