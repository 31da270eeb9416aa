package idempotence

import "net/http"

// statusRecorder wraps the response writer handed to the downstream
// handler so the final status code can be observed once the response is
// complete. Body writes pass straight through to the client; only the
// first explicit status sticks.
type statusRecorder struct {
	http.ResponseWriter
	status        int
	headerWritten bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{
		ResponseWriter: w,
		status:         http.StatusOK,
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.headerWritten {
		return
	}
	r.status = code
	r.headerWritten = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.headerWritten = true
	return r.ResponseWriter.Write(b)
}
