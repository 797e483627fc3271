package db

import (
	dbm "github.com/gartstein/maintenance/internal/maintenance/db/models"
	"github.com/gartstein/maintenance/internal/maintenance/models"
)

func teamToRow(t *models.Team) *dbm.Team {
	return &dbm.Team{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt}
}

func rowToTeam(row *dbm.Team) *models.Team {
	t := &models.Team{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt, Members: []models.Profile{}}
	for i := range row.Members {
		t.Members = append(t.Members, *rowToProfile(&row.Members[i]))
	}
	return t
}

func profileToRow(p *models.Profile) *dbm.Profile {
	return &dbm.Profile{
		ID:       p.ID,
		FullName: p.FullName,
		Email:    p.Email,
		Role:     string(p.Role),
		TeamID:   p.TeamID,
		Phone:    p.Phone,
	}
}

func rowToProfile(row *dbm.Profile) *models.Profile {
	return &models.Profile{
		ID:       row.ID,
		FullName: row.FullName,
		Email:    row.Email,
		Role:     models.Role(row.Role),
		TeamID:   row.TeamID,
		Phone:    row.Phone,
	}
}

func equipmentToRow(eq *models.Equipment) *dbm.Equipment {
	return &dbm.Equipment{
		ID:                eq.ID,
		Name:              eq.Name,
		SerialNumber:      eq.SerialNumber,
		Category:          eq.Category,
		Department:        eq.Department,
		Location:          eq.Location,
		PurchaseDate:      eq.PurchaseDate,
		WarrantyEndDate:   eq.WarrantyEndDate,
		MaintenanceTeamID: eq.MaintenanceTeamID,
		IsScrapped:        eq.IsScrapped,
	}
}

func rowToEquipment(row *dbm.Equipment) *models.Equipment {
	return &models.Equipment{
		ID:                row.ID,
		Name:              row.Name,
		SerialNumber:      row.SerialNumber,
		Category:          row.Category,
		Department:        row.Department,
		Location:          row.Location,
		PurchaseDate:      row.PurchaseDate.UTC(),
		WarrantyEndDate:   row.WarrantyEndDate.UTC(),
		MaintenanceTeamID: row.MaintenanceTeamID,
		IsScrapped:        row.IsScrapped,
	}
}

func requestToRow(req *models.MaintenanceRequest) *dbm.MaintenanceRequest {
	return &dbm.MaintenanceRequest{
		ID:            req.ID,
		Subject:       req.Subject,
		EquipmentID:   req.EquipmentID,
		TeamID:        req.TeamID,
		AssignedToID:  req.AssignedToID,
		RequestType:   string(req.RequestType),
		ScheduledDate: req.ScheduledDate,
		DurationHours: req.DurationHours,
		Status:        string(req.Status),
		Priority:      string(req.Priority),
		CreatedBy:     req.CreatedBy,
		CreatedAt:     req.CreatedAt,
	}
}

func rowToRequest(row *dbm.MaintenanceRequest) *models.MaintenanceRequest {
	req := &models.MaintenanceRequest{
		ID:            row.ID,
		Subject:       row.Subject,
		EquipmentID:   row.EquipmentID,
		TeamID:        row.TeamID,
		AssignedToID:  row.AssignedToID,
		RequestType:   models.RequestType(row.RequestType),
		DurationHours: row.DurationHours,
		Status:        models.Status(row.Status),
		Priority:      models.Priority(row.Priority),
		CreatedBy:     row.CreatedBy,
		CreatedAt:     row.CreatedAt,
	}
	if row.ScheduledDate != nil {
		d := row.ScheduledDate.UTC()
		req.ScheduledDate = &d
	}
	if row.Equipment != nil {
		req.EquipmentName = row.Equipment.Name
	}
	if row.AssignedTo != nil {
		req.AssigneeName = row.AssignedTo.FullName
	}
	return req
}
