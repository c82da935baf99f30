package shared

import (
	"net/http"

	"appraisal/internal/domain/appraisal"
	"appraisal/internal/transport/http/api"
	"appraisal/internal/transport/http/middleware"
)

// CurrentActor returns the authenticated caller, or writes a 401 and
// reports false.
func CurrentActor(w http.ResponseWriter, r *http.Request) (appraisal.Actor, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return appraisal.Actor{}, false
	}
	return appraisal.Actor{UserID: user.UserID, Role: user.RoleName}, true
}
