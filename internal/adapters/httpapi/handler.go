package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/usecase"
)

const maxJSONBodySize = 1 << 20

// Handler exposes catalog collections to untrusted API key holders.
type Handler struct {
	catalog     *usecase.Catalog
	schemas     *usecase.SchemaService
	authService *usecase.AuthService
	log         *zap.Logger
}

// NewHandler wires the HTTP surface. schemas may be nil, which leaves the
// schema routes out.
func NewHandler(catalog *usecase.Catalog, schemas *usecase.SchemaService, authService *usecase.AuthService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{catalog: catalog, schemas: schemas, authService: authService, log: log.Named("http")}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.healthz)

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireAPIKey)
		pr.Get("/v1/collections", h.listCollections)
		pr.Post("/v1/collections/{collection}/documents", h.insert)
		pr.Patch("/v1/collections/{collection}/documents", h.update)
		pr.Post("/v1/collections/{collection}/documents:remove", h.remove)
		pr.Post("/v1/collections/{collection}/documents:find", h.find)
		pr.Get("/v1/collections/{collection}/documents", h.list)
		pr.Get("/v1/collections/{collection}/documents/{id}", h.get)
		if h.schemas != nil {
			pr.With(h.requireAdmin).Put("/v1/collections/{collection}/schemas", h.putSchema)
			pr.With(h.requireAdmin).Get("/v1/collections/{collection}/schemas", h.listSchemas)
		}
	})

	return r
}

func (h *Handler) collection(w http.ResponseWriter, r *http.Request) (*usecase.Collection, bool) {
	name := chi.URLParam(r, "collection")
	coll, ok := h.catalog.Collection(name)
	if !ok {
		writeError(w, h.log, http.StatusNotFound, "NOT_FOUND", "unknown collection "+name)
		return nil, false
	}
	return coll, true
}

func (h *Handler) insert(w http.ResponseWriter, r *http.Request) {
	coll, ok := h.collection(w, r)
	if !ok {
		return
	}
	var body InsertBody
	if !h.decode(w, r, &body) {
		return
	}
	if body.Doc == nil {
		writeError(w, h.log, http.StatusBadRequest, "BAD_REQUEST", "doc is required")
		return
	}
	id, err := coll.Insert(r.Context(), fromWire(body.Doc), body.Options.toDomain())
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, h.log, http.StatusCreated, InsertResponse{ID: id})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	coll, ok := h.collection(w, r)
	if !ok {
		return
	}
	var body UpdateBody
	if !h.decode(w, r, &body) {
		return
	}
	if body.Modifier == nil {
		writeError(w, h.log, http.StatusBadRequest, "BAD_REQUEST", "modifier is required")
		return
	}
	res, err := coll.Mutate(r.Context(), domain.MutationRequest{
		Kind:     domain.Update,
		Selector: selectorFromWire(body.Selector),
		Modifier: fromWire(body.Modifier),
		Options:  body.Options.toDomain(),
	})
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, UpdateResponse{Affected: res.Affected, InsertedID: res.ID})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	coll, ok := h.collection(w, r)
	if !ok {
		return
	}
	var body RemoveBody
	if !h.decode(w, r, &body) {
		return
	}
	n, err := coll.Remove(r.Context(), selectorFromWire(body.Selector))
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, UpdateResponse{Affected: n})
}

func (h *Handler) find(w http.ResponseWriter, r *http.Request) {
	coll, ok := h.collection(w, r)
	if !ok {
		return
	}
	var body FindBody
	if !h.decode(w, r, &body) {
		return
	}
	docs, err := coll.Find(r.Context(), selectorFromWire(body.Selector), body.Limit)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, ListResponse{Items: toWire(docs)})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	coll, ok := h.collection(w, r)
	if !ok {
		return
	}
	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}
	docs, err := coll.Find(r.Context(), nil, limit)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, ListResponse{Items: toWire(docs)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	coll, ok := h.collection(w, r)
	if !ok {
		return
	}
	doc, err := coll.FindOne(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, toWire([]domain.Document{doc})[0])
}

func (h *Handler) listCollections(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.log, http.StatusOK, map[string]any{"collections": h.catalog.Names()})
}

func (h *Handler) putSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")
	var body SchemaBody
	if !h.decode(w, r, &body) {
		return
	}
	var raw []byte
	switch d := body.Definition.(type) {
	case string:
		raw = []byte(d)
	case map[string]any:
		encoded, err := json.Marshal(d)
		if err != nil {
			writeError(w, h.log, http.StatusBadRequest, "BAD_REQUEST", "invalid definition")
			return
		}
		raw = encoded
	default:
		writeError(w, h.log, http.StatusBadRequest, "BAD_REQUEST", "definition must be an object or a JSON string")
		return
	}
	err := h.schemas.Put(r.Context(), domain.StoredSchema{
		Collection: name,
		Adapter:    body.Adapter,
		Selector:   body.Selector,
		Definition: raw,
		Replace:    body.Replace,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]bool{"attached": true})
}

func (h *Handler) listSchemas(w http.ResponseWriter, r *http.Request) {
	stored, err := h.schemas.List(r.Context(), chi.URLParam(r, "collection"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	out := make([]SchemaBody, 0, len(stored))
	for _, s := range stored {
		out = append(out, SchemaBody{
			Adapter:    s.Adapter,
			Selector:   s.Selector,
			Definition: json.RawMessage(s.Definition),
			Replace:    s.Replace,
		})
	}
	writeJSON(w, h.log, http.StatusOK, map[string]any{"schemas": out})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.log, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if token == "" {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token = strings.TrimSpace(auth[7:])
			}
		}

		apiKey, err := h.authService.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrUnauthorized) {
				writeError(w, h.log, http.StatusUnauthorized, "UNAUTHORIZED", "")
				return
			}
			h.log.Error("authenticate", zap.Error(err))
			writeError(w, h.log, http.StatusInternalServerError, "INTERNAL", "")
			return
		}

		ctx := domain.WithIdentity(r.Context(), usecase.IdentityFor(apiKey))
		ctx = context.WithValue(ctx, apiKeyCtxKey{}, apiKey)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type apiKeyCtxKey struct{}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey, _ := r.Context().Value(apiKeyCtxKey{}).(domain.APIKey)
		if err := usecase.RequireAdmin(apiKey); err != nil {
			writeError(w, h.log, http.StatusForbidden, "FORBIDDEN", "admin api key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "BAD_REQUEST", "invalid json body")
		return false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "BAD_REQUEST", "invalid json body")
		return false
	}
	return true
}

func (h *Handler) parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, h.log, http.StatusBadRequest, "BAD_REQUEST", "limit must be a non-negative integer")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

// handleError writes err as a boundary body. Validation details leave the
// server only as the field error list.
func (h *Handler) handleError(w http.ResponseWriter, err error) {
	var (
		be   *domain.BoundaryError
		verr *domain.ValidationError
		dup  *domain.DuplicateKeyError
	)
	switch {
	case errors.As(err, &verr):
		writeBoundary(w, h.log, verr.Sanitized())
	case errors.As(err, &be):
		writeBoundary(w, h.log, be)
	case errors.As(err, &dup):
		writeError(w, h.log, http.StatusConflict, dup.Error(), "")
	case domain.ErrConfiguration.Has(err):
		writeError(w, h.log, http.StatusBadRequest, "CONFIGURATION", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, h.log, http.StatusNotFound, "NOT_FOUND", "")
	case errors.Is(err, context.Canceled):
		writeError(w, h.log, http.StatusRequestTimeout, "CANCELED", "")
	default:
		h.log.Error("request failed", zap.Error(err))
		writeError(w, h.log, http.StatusInternalServerError, "INTERNAL", "")
	}
}

func writeBoundary(w http.ResponseWriter, log *zap.Logger, be *domain.BoundaryError) {
	status := be.Status
	if status < 400 || status > 599 {
		status = http.StatusBadRequest
	}
	writeJSON(w, log, status, be)
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Error("encode json response", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, log *zap.Logger, status int, reason, details string) {
	writeJSON(w, log, status, &domain.BoundaryError{Status: status, Reason: reason, Details: details})
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}
