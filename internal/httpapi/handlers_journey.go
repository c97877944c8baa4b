package httpapi

import (
	"net/http"
	"time"

	"github.com/samburke97/bord-business-sub001/internal/domain"
	"github.com/samburke97/bord-business-sub001/internal/journey"
)

type journeyResponse struct {
	State     journey.Classification `json:"state"`
	Route     string                 `json:"route"`
	DerivedAt time.Time              `json:"derivedAt"`
}

// handleUserJourney serves the derived journey state and the single
// route the client must render next.
func (a *api) handleUserJourney(w http.ResponseWriter, r *http.Request) {
	sess, ok := CurrentSession(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	snap, err := a.journeySvc.State(r.Context(), sess.UserID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, journeyResponse{
		State:     snap.Classification,
		Route:     journey.WithEmail(snap.Route, sess.Email),
		DerivedAt: snap.DerivedAt,
	})
}
