package httpx

import (
	"errors"
	"net/http"

	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/shared"
)

type errorMapping struct {
	status    int
	title     string
	kind      string
	retryable bool
}

var errorMappings = []struct {
	err     error
	mapping errorMapping
}{
	{shared.ErrUnknownRole, errorMapping{http.StatusBadRequest, "Unknown Role", "UnknownRole", false}},
	{shared.ErrDuplicateRole, errorMapping{http.StatusConflict, "Duplicate Role", "DuplicateName", false}},
	{shared.ErrDuplicateLevel, errorMapping{http.StatusConflict, "Duplicate Level", "DuplicateLevel", false}},
	{shared.ErrAlreadyActive, errorMapping{http.StatusConflict, "Assignment Already Active", "AlreadyActive", false}},
	{shared.ErrNotFound, errorMapping{http.StatusNotFound, "Not Found", "NotFound", false}},
	{shared.ErrUnknownOperationType, errorMapping{http.StatusBadRequest, "Unknown Operation Type", "UnknownOperationType", false}},
	{shared.ErrEmptyChainMisconfigured, errorMapping{http.StatusUnprocessableEntity, "Chain Misconfigured", "EmptyChainMisconfigured", false}},
	{shared.ErrNotPending, errorMapping{http.StatusConflict, "Request Not Pending", "NotPending", false}},
	{shared.ErrUnauthorized, errorMapping{http.StatusForbidden, "Insufficient Privilege", "Unauthorized", false}},
	{shared.ErrConflict, errorMapping{http.StatusConflict, "Version Conflict", "Conflict", true}},
	{shared.ErrInvalidCredentials, errorMapping{http.StatusUnauthorized, "Invalid Credentials", "InvalidCredentials", false}},
}

// RespondError maps engine errors onto RFC7807 responses. Unknown errors
// become opaque 500s; the detail is only exposed for expected kinds.
func RespondError(w http.ResponseWriter, err error) {
	for _, entry := range errorMappings {
		if errors.Is(err, entry.err) {
			JSON(w, entry.mapping.status, ProblemDetail{
				Title:     entry.mapping.title,
				Status:    entry.mapping.status,
				Detail:    err.Error(),
				Kind:      entry.mapping.kind,
				Retryable: entry.mapping.retryable,
			})
			return
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
