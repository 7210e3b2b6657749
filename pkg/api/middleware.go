package api

import (
	"errors"
	"io"
	"net/http"
)

// requestBodySizeLimitMiddleware rejects requests whose declared
// Content-Length already exceeds limit, and wraps the body in
// http.MaxBytesReader for the rest. A handler that reads past the
// limit gets an I/O error from the body and typically answers with its
// own 400; this middleware upgrades that specific 400 to 413 so the
// client sees the real cause, while leaving unrelated 400s (validation
// failures that never touched an oversized body) alone.
func requestBodySizeLimitMiddleware(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
				return
			}

			exceeded := new(bool)
			r.Body = &maxBytesBody{ReadCloser: http.MaxBytesReader(w, r.Body, limit), exceeded: exceeded}
			next.ServeHTTP(&bodySizeResponseWriter{ResponseWriter: w, exceeded: exceeded}, r)
		})
	}
}

// maxBytesBody notices when a read trips the MaxBytesReader limit, so
// the response writer below can tell a body-too-large 400 apart from
// an ordinary validation 400.
type maxBytesBody struct {
	io.ReadCloser
	exceeded *bool
}

func (b *maxBytesBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		*b.exceeded = true
	}
	return n, err
}

type bodySizeResponseWriter struct {
	http.ResponseWriter
	exceeded    *bool
	wroteHeader bool
}

func (w *bodySizeResponseWriter) WriteHeader(status int) {
	if *w.exceeded && status == http.StatusBadRequest {
		status = http.StatusRequestEntityTooLarge
	}
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *bodySizeResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
