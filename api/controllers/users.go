package controllers

import (
	"net/http"
	"strings"

	"github.com/storelane/storelane-backend/api/responses"
	usersvc "github.com/storelane/storelane-backend/internal/users"
	"github.com/storelane/storelane-backend/pkg/enums"
	pkgerrors "github.com/storelane/storelane-backend/pkg/errors"
	"github.com/storelane/storelane-backend/pkg/logger"
)

// AdminListUsers lists accounts, optionally filtered by status (e.g. pending).
func AdminListUsers(svc usersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		params, err := parsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.UserStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed := enums.UserStatus(raw)
			status = &parsed
		}

		list, err := svc.List(r.Context(), params, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminApproveUser(svc usersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return moderateUser(svc, logg, func(r *http.Request) (any, error) {
		userID, err := parseUUIDParam(r, "userId")
		if err != nil {
			return nil, err
		}
		return svc.Approve(r.Context(), userID)
	})
}

func AdminRejectUser(svc usersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return moderateUser(svc, logg, func(r *http.Request) (any, error) {
		userID, err := parseUUIDParam(r, "userId")
		if err != nil {
			return nil, err
		}
		return svc.Reject(r.Context(), userID)
	})
}

func moderateUser(svc usersvc.Service, logg *logger.Logger, run func(*http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}
		result, err := run(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
