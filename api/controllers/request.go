package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/koseken/game-trading/api/middleware"
	"github.com/koseken/game-trading/api/responses"
	"github.com/koseken/game-trading/api/validators"
	pkgerrors "github.com/koseken/game-trading/pkg/errors"
	"github.com/koseken/game-trading/pkg/logger"
)

// requireActor writes a 401 and returns false when the request carries no user.
func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	actorID, ok := middleware.ActorID(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return uuid.Nil, false
	}
	return actorID, true
}

func pathID(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) (uuid.UUID, bool) {
	id, err := validators.ParseURLParamUUID(r, name)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return uuid.Nil, false
	}
	return id, true
}

func serviceUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable"))
}
