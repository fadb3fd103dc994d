package web

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/usecase"
)

// pathID binds the {id} URL parameter as a UUID and returns its canonical form.
func pathID(r *http.Request) (string, error) {
	var id uuid.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		return "", fmt.Errorf("%w: id must be a UUID", domain.ErrInvalidArgument)
	}
	return id.String(), nil
}

// GET /api/packages[?all=true]
func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	var all *bool
	if err := runtime.BindQueryParameter("form", true, false, "all", r.URL.Query(), &all); err != nil {
		respondError(w, r, s.log, fmt.Errorf("%w: all must be a boolean", domain.ErrInvalidArgument))
		return
	}

	if all != nil && *all {
		claims, err := s.sessions.ParseFromRequest(r)
		if err != nil {
			respondError(w, r, s.log, err)
			return
		}
		if !claims.Role.Satisfies(model.RoleAdmin) {
			respondError(w, r, s.log, fmt.Errorf("%w: requires role %s", domain.ErrForbidden, model.RoleAdmin))
			return
		}
		pkgs, err := s.packages.ListAll(r.Context())
		if err != nil {
			respondError(w, r, s.log, err)
			return
		}
		respondOK(w, pkgs)
		return
	}

	pkgs, err := s.packages.ListActive(r.Context())
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondOK(w, pkgs)
}

// POST /api/packages
func (s *Server) handleCreatePackage(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	var in usecase.PackageInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, s.log, err)
		return
	}
	p, err := s.packages.Create(r.Context(), in, actor)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondCreated(w, p)
}

// GET /api/packages/{id}
func (s *Server) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	p, err := s.packages.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondOK(w, p)
}

// PUT /api/packages/{id}
func (s *Server) handleUpdatePackage(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	var in usecase.PackageInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, s.log, err)
		return
	}
	p, err := s.packages.Update(r.Context(), id, in, actor)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondOK(w, p)
}

// DELETE /api/packages/{id}
func (s *Server) handleDeletePackage(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, s.log, err)
		return
	}
	if err := s.packages.Delete(r.Context(), id, actor); err != nil {
		respondError(w, r, s.log, err)
		return
	}
	respondMessage(w, "package deleted")
}
