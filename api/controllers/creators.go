package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/api/validators"
	creatorsvc "github.com/angelmondragon/marketplace-backend/internal/creators"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// CreatorsList pages through creators that are currently active.
func CreatorsList(svc creatorsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.OptionalQueryInt(r, pkgerrors.CodeValidation, "page")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		size, err := validators.OptionalQueryInt(r, pkgerrors.CodeValidation, "pageSize", "limit")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListActive(r.Context(), page, size)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func CreatorGet(svc creatorsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creatorID, err := uuid.Parse(chi.URLParam(r, "creatorId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid creator id"))
			return
		}

		creator, err := svc.Get(r.Context(), creatorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, creator)
	}
}

type registerCreatorRequest struct {
	Name         string  `json:"name" validate:"required,max=200"`
	Email        string  `json:"email" validate:"required,email,max=320"`
	Description  string  `json:"description" validate:"max=5000"`
	ProfileImage *string `json:"profileImage,omitempty" validate:"omitempty,url"`
	Website      *string `json:"website,omitempty" validate:"omitempty,url"`
}

// CreatorRegister turns the authenticated user into a creator.
func CreatorRegister(svc creatorsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload registerCreatorRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		creator, err := svc.Register(r.Context(), userID, creatorsvc.RegisterInput{
			Name:         payload.Name,
			Email:        payload.Email,
			Description:  payload.Description,
			ProfileImage: payload.ProfileImage,
			Website:      payload.Website,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, creator)
	}
}
