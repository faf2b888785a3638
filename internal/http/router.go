package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router net/http ServeMux, no third-party router
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func allow(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

// RegisterAuthRoutes register/login are public; logout/me go through authed.
func (r *Router) RegisterAuthRoutes(h *AuthHandler, authed func(http.HandlerFunc) http.HandlerFunc) {
	r.Handle("/api/v1/auth/register", allow(http.MethodPost, h.Register))
	r.Handle("/api/v1/auth/login", allow(http.MethodPost, h.Login))
	r.Handle("/api/v1/auth/logout", allow(http.MethodPost, authed(h.Logout)))
	r.Handle("/api/v1/auth/me", allow(http.MethodGet, authed(h.Me)))
}

func (r *Router) RegisterBPStatRoutes(h *BPStatHandler, authed func(http.HandlerFunc) http.HandlerFunc) {
	r.Handle("/api/v1/bpstats", authed(func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.List(w, req)
		case http.MethodPost:
			h.Create(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))

	// summary | export | import | {id}
	r.Handle("/api/v1/bpstats/", authed(func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/api/v1/bpstats/")
		if rest == "" || strings.Contains(rest, "/") {
			writeJSON(w, http.StatusNotFound, Fail("not found"))
			return
		}
		switch rest {
		case "summary":
			allow(http.MethodGet, h.Summary)(w, req)
		case "export":
			allow(http.MethodGet, h.Export)(w, req)
		case "import":
			allow(http.MethodPost, h.Import)(w, req)
		default:
			switch req.Method {
			case http.MethodGet:
				h.Get(w, req, rest)
			case http.MethodDelete:
				h.Delete(w, req, rest)
			default:
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
		}
	}))
}

func (r *Router) RegisterMetaRoutes(h *MetaHandler) {
	r.Handle("/api/v1/categories", allow(http.MethodGet, h.Categories))
	r.Handle("/healthz", allow(http.MethodGet, h.Health))
}
