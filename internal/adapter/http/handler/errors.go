package handler

import "net/http"

func errorResponse(w http.ResponseWriter, status int, message any) {
	env := envelope{"error": message}

	if err := writeJSON(w, status, env, nil); err != nil {
		w.WriteHeader(500)
	}
}

// domainErrorResponse renders a domain error with its status and reason.
func domainErrorResponse(w http.ResponseWriter, err error) {
	env := envelope{"error": err.Error()}
	if reason := GetReason(err); reason != "" {
		env["reason"] = reason
	}

	if werr := writeJSON(w, GetCode(err), env, nil); werr != nil {
		w.WriteHeader(500)
	}
}

// failedValidationResponse returns 422 Unprocessable Entity: the request was
// syntactically fine but the values cannot be processed.
func failedValidationResponse(w http.ResponseWriter, errors map[string]string) {
	errorResponse(w, http.StatusUnprocessableEntity, errors)
}

func internalErrorResponse(w http.ResponseWriter, message any) {
	errorResponse(w, http.StatusInternalServerError, message)
}
