package healthcheck

import (
	"encoding/json"
	"net/http"
)

// Self reports liveness; it deliberately checks nothing downstream so that a
// degraded dependency does not take the whole service out of rotation.
func Self(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
