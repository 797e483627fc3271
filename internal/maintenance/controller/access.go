package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/gartstein/maintenance/internal/maintenance/auth"
	e "github.com/gartstein/maintenance/internal/maintenance/errors"
	"github.com/gartstein/maintenance/internal/maintenance/models"
	"github.com/google/uuid"
)

// ProfileReader resolves profiles by id.
type ProfileReader interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

// callerProfile loads the profile of the signed-in caller.
func callerProfile(ctx context.Context, profiles ProfileReader) (*models.Profile, error) {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: no signed-in caller", e.ErrAuthorization)
	}
	profile, err := profiles.GetProfile(ctx, principal.ProfileID)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, fmt.Errorf("%w: caller has no profile", e.ErrAuthorization)
		}
		return nil, err
	}
	return profile, nil
}

// requireTeamManager allows admins and managers through.
func requireTeamManager(ctx context.Context, profiles ProfileReader) (*models.Profile, error) {
	profile, err := callerProfile(ctx, profiles)
	if err != nil {
		return nil, err
	}
	if !profile.CanManageTeams() {
		return nil, fmt.Errorf("%w: role %q cannot manage teams", e.ErrAuthorization, profile.Role)
	}
	return profile, nil
}
