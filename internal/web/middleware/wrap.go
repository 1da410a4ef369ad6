package middleware

import "net/http"

// beforeWriteRecorder runs a hook once, right before the first header or body write.
type beforeWriteRecorder struct {
	http.ResponseWriter
	before func(http.ResponseWriter)
	wrote  bool
}

func newBeforeWriteRecorder(w http.ResponseWriter, before func(http.ResponseWriter)) *beforeWriteRecorder {
	return &beforeWriteRecorder{ResponseWriter: w, before: before}
}

func (rw *beforeWriteRecorder) fire() {
	if rw.wrote {
		return
	}
	rw.wrote = true
	if rw.before != nil {
		rw.before(rw.ResponseWriter)
	}
}

func (rw *beforeWriteRecorder) WriteHeader(code int) {
	rw.fire()
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *beforeWriteRecorder) Write(b []byte) (int, error) {
	rw.fire()
	return rw.ResponseWriter.Write(b)
}

func (rw *beforeWriteRecorder) Flush() {
	rw.fire()
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *beforeWriteRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
