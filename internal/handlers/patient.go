package handlers

import (
	"net/http"

	"github.com/carenet/apiserver/internal/auth"
	"github.com/carenet/apiserver/types"
)

var stubPatients = []types.Patient{
	{ID: 1, Name: "Patient A"},
	{ID: 2, Name: "Patient B"},
}

// PatientListResponse echoes the caller's claims next to the listing.
type PatientListResponse struct {
	User     *auth.Claims    `json:"user"`
	Patients []types.Patient `json:"patients"`
}

// ListPatients returns the fixed patient listing. It must sit behind RequireAuth.
func ListPatients(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgTokenInvalid)
		return
	}
	writeJSON(w, http.StatusOK, PatientListResponse{User: claims, Patients: stubPatients})
}
