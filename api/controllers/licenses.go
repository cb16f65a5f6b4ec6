package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/licensegate/api/middleware"
	"github.com/angelmondragon/licensegate/api/responses"
	"github.com/angelmondragon/licensegate/api/validators"
	"github.com/angelmondragon/licensegate/internal/licenses"
	"github.com/angelmondragon/licensegate/pkg/db/models"
	pkgerrors "github.com/angelmondragon/licensegate/pkg/errors"
	"github.com/angelmondragon/licensegate/pkg/logger"
	"github.com/angelmondragon/licensegate/pkg/types"
)

const (
	dateOnlyLayout = "2006-01-02"
	maxListLimit   = 10000
	maxOwnerLen    = 128
)

// parseExpiry accepts RFC3339 or a bare date, which means midnight UTC of that day.
func parseExpiry(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		utc := ts.UTC()
		return &utc, nil
	}
	if ts, err := time.ParseInLocation(dateOnlyLayout, raw, time.UTC); err == nil {
		return &ts, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid expires_at").
		WithDetails(map[string]any{"field": "expires_at", "formats": []string{time.RFC3339, dateOnlyLayout}})
}

// LicenseCreate issues a key for the requested owner.
func LicenseCreate(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		var payload types.CreateLicenseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		expiresAt, err := parseExpiry(payload.ExpiresAt)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), licenses.CreateInput{
			Owner:     payload.Owner,
			ExpiresAt: expiresAt,
			Notes:     validators.SanitizeString(payload.Notes, 1024),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, issuedFromModel(created))
	}
}

// LicenseGenerate issues a key owned by the calling admin.
func LicenseGenerate(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		var payload types.GenerateKeyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := strings.TrimSpace(payload.Actor)
		if actor == "" {
			actor = middleware.ActorFromContext(r.Context())
		}

		created, err := svc.GenerateUnassigned(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, issuedFromModel(created))
	}
}

func LicenseRevoke(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		var payload types.RevokeLicenseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Revoke(r.Context(), payload.Key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, types.RevokeLicenseResponse{
			Revoked: true,
			Key:     result.License.Key,
			Status:  string(result.Status),
		})
	}
}

// LicenseList returns licenses newest first; limit 0 or absent returns the configured default.
func LicenseList(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, maxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.List(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, licensesFromModels(rows))
	}
}

func LicenseLookup(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		owner, err := validators.RequireQuery(r, "owner", maxOwnerLen)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.Lookup(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, licensesFromModels(rows))
	}
}

// LicenseValidate answers whether a presented key is usable and records the caller address on first success.
func LicenseValidate(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		var payload types.ValidateLicenseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		writeValidation(w, r, svc, logg, payload.Key, payload.IP)
	}
}

// LicenseCheck is the read-only variant of validate: it never binds an address.
func LicenseCheck(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}
		writeValidation(w, r, svc, logg, chi.URLParam(r, "key"), "")
	}
}

func writeValidation(w http.ResponseWriter, r *http.Request, svc licenses.Service, logg *logger.Logger, key, address string) {
	result, err := svc.Validate(r.Context(), key, address)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, types.ValidateLicenseResponse{
		Valid:  result.Valid,
		Reason: result.Reason,
		Owner:  result.Owner,
	})
}

func issuedFromModel(m *models.License) types.IssuedLicense {
	return types.IssuedLicense{
		Key:       m.Key,
		Owner:     m.Owner,
		ExpiresAt: m.ExpiresAt,
		Notes:     m.Notes,
		CreatedAt: m.CreatedAt,
	}
}

func licenseFromModel(m models.License) types.License {
	return types.License{
		Key:       m.Key,
		Owner:     m.Owner,
		ServerIP:  m.ServerIP,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
		Notes:     m.Notes,
	}
}

func licensesFromModels(rows []models.License) []types.License {
	out := make([]types.License, 0, len(rows))
	for _, row := range rows {
		out = append(out, licenseFromModel(row))
	}
	return out
}
