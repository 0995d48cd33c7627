package jobs

import (
	"crypto/subtle"
	"net/http"

	"tutorcoach_backend/platform/config"

	"github.com/gin-gonic/gin"
)

// HeaderTriggerSecret carries the shared secret the external scheduler
// presents on every trigger call.
const HeaderTriggerSecret = "X-Jobs-Secret"

// TriggerSecret returns middleware that gates the jobs surface behind the
// shared secret. An unconfigured secret disables the surface entirely.
func TriggerSecret(cfg config.JobsConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := cfg.GetJobsTriggerSecret()
		provided := c.GetHeader(HeaderTriggerSecret)

		if secret == "" || provided == "" ||
			subtle.ConstantTimeCompare([]byte(secret), []byte(provided)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Next()
	}
}

// AllowedJobs returns middleware that rejects job names outside the
// configured allow-list.
func AllowedJobs(cfg config.JobsConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		for _, allowed := range cfg.GetJobsAllowed() {
			if name == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "job not allowed"})
	}
}
