package db

import (
	"context"
	"iter"

	dbm "github.com/gartstein/maintenance/internal/maintenance/db/models"
	e "github.com/gartstein/maintenance/internal/maintenance/errors"
	"github.com/gartstein/maintenance/internal/maintenance/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (r *Repository) CreateTeam(ctx context.Context, team *models.Team) error {
	row := teamToRow(team)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return mapError(err)
	}
	team.CreatedAt = row.CreatedAt
	return nil
}

func (r *Repository) TeamExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&dbm.Team{}).
		Where("id = ?", id).
		Limit(1).
		Count(&count)
	return count > 0, mapError(result.Error)
}

// ListTeams returns every team ordered by name with its members expanded.
func (r *Repository) ListTeams(ctx context.Context) ([]*models.Team, error) {
	var rows []dbm.Team
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("full_name") }).
		Order("name").
		Find(&rows).Error
	if err != nil {
		return nil, mapError(err)
	}
	teams := make([]*models.Team, 0, len(rows))
	for i := range rows {
		teams = append(teams, rowToTeam(&rows[i]))
	}
	return teams, nil
}

func (r *Repository) CreateProfile(ctx context.Context, profile *models.Profile) error {
	return mapError(r.db.WithContext(ctx).Create(profileToRow(profile)).Error)
}

func (r *Repository) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var row dbm.Profile
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}
	return rowToProfile(&row), nil
}

// AssignProfile moves an unassigned profile into a team. The update only
// matches while team_id is still null, so a concurrent assignment surfaces
// as ErrConflict rather than being overwritten.
func (r *Repository) AssignProfile(ctx context.Context, a *models.Assignment) (*models.Profile, error) {
	var updated *models.Profile
	err := r.WithTransaction(ctx, func(tx *Repository) error {
		result := tx.db.WithContext(ctx).Model(&dbm.Profile{}).
			Where("id = ? AND team_id IS NULL", a.ProfileID).
			Updates(map[string]interface{}{
				"team_id": a.TeamID,
				"role":    string(a.Role),
				"phone":   a.Phone,
			})
		if result.Error != nil {
			return mapError(result.Error)
		}

		profile, err := tx.GetProfile(ctx, a.ProfileID)
		if err != nil {
			return err
		}
		if result.RowsAffected == 0 {
			return e.ErrConflict
		}
		updated = profile
		return nil
	})
	return updated, err
}

// UnassignedProfiles streams profiles without a team. Each range over the
// returned sequence issues a fresh query.
func (r *Repository) UnassignedProfiles(ctx context.Context) iter.Seq2[models.Profile, error] {
	return func(yield func(models.Profile, error) bool) {
		rows, err := r.db.WithContext(ctx).Model(&dbm.Profile{}).
			Where("team_id IS NULL").
			Order("full_name").
			Rows()
		if err != nil {
			yield(models.Profile{}, mapError(err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var row dbm.Profile
			if err := r.db.ScanRows(rows, &row); err != nil {
				yield(models.Profile{}, mapError(err))
				return
			}
			if !yield(*rowToProfile(&row), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.Profile{}, mapError(err))
		}
	}
}

func (r *Repository) CreateCredential(ctx context.Context, cred *dbm.Credential) error {
	return mapError(r.db.WithContext(ctx).Create(cred).Error)
}

func (r *Repository) GetCredentialByEmail(ctx context.Context, email string) (*dbm.Credential, error) {
	var cred dbm.Credential
	if err := r.db.WithContext(ctx).First(&cred, "email = ?", email).Error; err != nil {
		return nil, mapError(err)
	}
	return &cred, nil
}

// CreateAccount stores a new profile and its credential atomically.
func (r *Repository) CreateAccount(ctx context.Context, profile *models.Profile, cred *dbm.Credential) error {
	return r.WithTransaction(ctx, func(tx *Repository) error {
		if err := tx.CreateProfile(ctx, profile); err != nil {
			return err
		}
		return tx.CreateCredential(ctx, cred)
	})
}
