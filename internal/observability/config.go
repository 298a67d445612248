package observability

import (
	"net/http"
	"net/http/pprof"
)

// Config holds the opt-in debug surfaces served next to the game endpoints.
type Config struct {
	// EnablePprofTrace mounts net/http/pprof under /debug/pprof/.
	EnablePprofTrace bool
}

// Mount registers the enabled debug handlers on mux.
func (c Config) Mount(mux *http.ServeMux) {
	if !c.EnablePprofTrace {
		return
	}
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}
