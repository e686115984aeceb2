package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/fabricacollective/amplify/internal/domain"
)

// maxRequestBody caps JSON request bodies at 256KB. The largest legitimate
// payload is a remix of a long generation, well under this.
const maxRequestBody = 256 << 10

// decodeJSON decodes the request body into dst with strict limits.
// Unknown fields are rejected so client typos surface as 400s instead of
// silently dropped options.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return domain.Invalid("", "Request body too large")
		case errors.Is(err, io.EOF):
			return domain.Invalid("", "Request body is required")
		default:
			return domain.Wrap(err, domain.EINVALID, "", "Request body is not valid JSON")
		}
	}

	// A second document in the body is a malformed request
	if dec.More() {
		return domain.Invalid("", "Request body must contain a single JSON object")
	}

	return nil
}
