// Package handler exposes the mileage use cases over HTTP.
package handler

import (
	"context"
	"time"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/application"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/maptile"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RouteUseCases is implemented by *application.RouteService.
type RouteUseCases interface {
	CalculateRoute(ctx context.Context, req application.CalculateRouteRequest) (*application.RouteDTO, error)
	PlaceDetails(ctx context.Context, placeID string) (*route.Place, error)
}

// ExpenseUseCases is implemented by *application.ExpenseService.
type ExpenseUseCases interface {
	GetExpense(ctx context.Context, id uuid.UUID) (*application.ExpenseDTO, error)
	RenderMap(ctx context.Context, id uuid.UUID) (*maptile.Artifact, error)
}

// WizardUseCases is implemented by *application.WizardService.
type WizardUseCases interface {
	CreateSession(ctx context.Context) *application.SessionDTO
	OpenForEdit(ctx context.Context, expenseID uuid.UUID) (*application.SessionDTO, error)
	GetSession(ctx context.Context, id uuid.UUID) (*application.SessionDTO, error)
	DiscardSession(ctx context.Context, id uuid.UUID) error
	Autocomplete(ctx context.Context, id uuid.UUID, field, query string) (*application.AutocompleteDTO, error)
	SetStartLocation(ctx context.Context, id uuid.UUID, placeID string) (*application.SessionDTO, error)
	SetEndLocation(ctx context.Context, id uuid.UUID, placeID string) (*application.SessionDTO, error)
	SetWaypoints(ctx context.Context, id uuid.UUID, req application.SetWaypointsRequest) (*application.SessionDTO, error)
	UpdateDetails(ctx context.Context, id uuid.UUID, req application.UpdateDetailsRequest) (*application.SessionDTO, error)
	Next(ctx context.Context, id uuid.UUID) (*application.SessionDTO, error)
	Back(ctx context.Context, id uuid.UUID) (*application.SessionDTO, error)
	Calculate(ctx context.Context, id uuid.UUID, req application.CalculateRequest) (*application.SessionDTO, error)
	RenderMap(ctx context.Context, id uuid.UUID) (*maptile.Artifact, error)
	Submit(ctx context.Context, id uuid.UUID) (*application.ExpenseDTO, error)
}

// SessionAdmin is implemented by *application.WizardService.
type SessionAdmin interface {
	ActiveSessions() int
	SweepExpired(now time.Time) int
}

func parseID(c *gin.Context, param, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.BadRequest(c, "invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// writeArtifact answers with the artifact even when rendering failed, so the client can show the
// markers and offer a retry.
func writeArtifact(c *gin.Context, artifact *maptile.Artifact, err error) {
	if err != nil {
		if artifact != nil {
			response.ErrorWithData(c, err, artifact)
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, artifact)
}
