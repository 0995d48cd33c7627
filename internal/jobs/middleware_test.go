package jobs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeJobsConfig struct {
	secret  string
	allowed []string
}

func (f fakeJobsConfig) GetJobsTriggerSecret() string { return f.secret }
func (f fakeJobsConfig) GetJobsAllowed() []string     { return f.allowed }

func newTriggerRouter(cfg fakeJobsConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/api/v1/jobs")
	group.Use(TriggerSecret(cfg), AllowedJobs(cfg))
	group.POST("/:name", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return r
}

func trigger(r *gin.Engine, name, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/"+name, nil)
	if secret != "" {
		req.Header.Set(HeaderTriggerSecret, secret)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestMissingSecretIsUnauthorized(t *testing.T) {
	r := newTriggerRouter(fakeJobsConfig{secret: "topsecret", allowed: []string{JobSessionNudges}})

	rec := trigger(r, JobSessionNudges, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestWrongSecretIsUnauthorized(t *testing.T) {
	r := newTriggerRouter(fakeJobsConfig{secret: "topsecret", allowed: []string{JobSessionNudges}})

	rec := trigger(r, JobSessionNudges, "guess")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestUnconfiguredSecretDisablesSurface(t *testing.T) {
	r := newTriggerRouter(fakeJobsConfig{secret: "", allowed: []string{JobSessionNudges}})

	rec := trigger(r, JobSessionNudges, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestJobOutsideAllowListIsForbidden(t *testing.T) {
	r := newTriggerRouter(fakeJobsConfig{secret: "topsecret", allowed: []string{JobSessionNudges}})

	rec := trigger(r, JobReconcilePayments, "topsecret")
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestAllowedJobWithValidSecretPasses(t *testing.T) {
	r := newTriggerRouter(fakeJobsConfig{secret: "topsecret", allowed: []string{JobSessionNudges, JobReconcilePayments}})

	rec := trigger(r, JobReconcilePayments, "topsecret")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
