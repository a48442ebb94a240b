package authapi

import (
	"errors"
	"io"
	"net/http"

	v1 "webapp/shared/contracts/protocol/v1"
)

// ContentType is the media type of request and response bodies.
const ContentType = "application/cbor"

var errEmptyBody = errors.New("empty body")

func writeResponse(w http.ResponseWriter, status int, resp v1.Response) {
	body, err := v1.EncodeResponse(resp)
	if err != nil {
		// Only reachable for non-UTF-8 tokens; fall back to a fixed failure.
		body, _ = v1.EncodeResponse(v1.Failure(msgLoginFailed))
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func readBody(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	if r.Body == nil {
		return nil, errEmptyBody
	}
	defer func() { _ = r.Body.Close() }()

	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
}
