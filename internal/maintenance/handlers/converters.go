package handlers

import (
	"errors"
	"time"

	"github.com/gartstein/maintenance/internal/maintenance/controller"
	e "github.com/gartstein/maintenance/internal/maintenance/errors"
	"github.com/gartstein/maintenance/internal/maintenance/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const monthLayout = "2006-01"

// reader pulls typed fields out of a request Struct and collects the ones
// that are present but malformed. Absent fields read as zero values and are
// left to the domain validation.
type reader struct {
	fields     map[string]*structpb.Value
	violations []e.FieldViolation
}

func newReader(s *structpb.Struct) *reader {
	return &reader{fields: s.GetFields()}
}

func (r *reader) str(key string) string {
	if s := r.optString(key); s != nil {
		return *s
	}
	return ""
}

func (r *reader) optString(key string) *string {
	v, ok := r.fields[key]
	if !ok || isNull(v) {
		return nil
	}
	s, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		r.invalid(key, "must be a string")
		return nil
	}
	return &s.StringValue
}

func (r *reader) uuid(key string) uuid.UUID {
	id := r.optUUID(key)
	if id == nil {
		return uuid.Nil
	}
	return *id
}

func (r *reader) optUUID(key string) *uuid.UUID {
	raw := r.optString(key)
	if raw == nil || *raw == "" {
		return nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		r.invalid(key, "must be a UUID")
		return nil
	}
	return &id
}

func (r *reader) date(key string) time.Time {
	d := r.optDate(key)
	if d == nil {
		return time.Time{}
	}
	return *d
}

func (r *reader) optDate(key string) *time.Time {
	raw := r.optString(key)
	if raw == nil || *raw == "" {
		return nil
	}
	d, err := time.Parse(time.DateOnly, *raw)
	if err != nil {
		r.invalid(key, "must be a date formatted YYYY-MM-DD")
		return nil
	}
	return &d
}

func (r *reader) month(key string) time.Time {
	reported := len(r.violations)
	raw := r.str(key)
	if len(r.violations) > reported {
		return time.Time{}
	}
	m, err := time.Parse(monthLayout, raw)
	if err != nil {
		r.invalid(key, "must be a month formatted YYYY-MM")
	}
	return m
}

func (r *reader) optFloat(key string) *float64 {
	v, ok := r.fields[key]
	if !ok || isNull(v) {
		return nil
	}
	if _, isNumber := v.GetKind().(*structpb.Value_NumberValue); !isNumber {
		r.invalid(key, "must be a number")
		return nil
	}
	f := v.GetNumberValue()
	return &f
}

func (r *reader) invalid(field, description string) {
	r.violations = append(r.violations, e.FieldViolation{Field: field, Description: description})
}

func (r *reader) err() error {
	if len(r.violations) == 0 {
		return nil
	}
	return &e.ValidationError{Violations: r.violations}
}

func isNull(v *structpb.Value) bool {
	_, null := v.GetKind().(*structpb.Value_NullValue)
	return null
}

func optionalID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

func formatDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func teamToMap(team *models.Team) map[string]interface{} {
	members := make([]interface{}, 0, len(team.Members))
	for i := range team.Members {
		members = append(members, profileToMap(&team.Members[i]))
	}
	return map[string]interface{}{
		"id":         team.ID.String(),
		"name":       team.Name,
		"created_at": team.CreatedAt.UTC().Format(time.RFC3339),
		"members":    members,
	}
}

func profileToMap(p *models.Profile) map[string]interface{} {
	m := map[string]interface{}{
		"id":        p.ID.String(),
		"full_name": p.FullName,
		"email":     p.Email,
		"role":      string(p.Role),
		"team_id":   optionalID(p.TeamID),
		"phone":     nil,
	}
	if p.Phone != nil {
		m["phone"] = *p.Phone
	}
	return m
}

func equipmentToMap(eq *models.Equipment) map[string]interface{} {
	return map[string]interface{}{
		"id":                  eq.ID.String(),
		"name":                eq.Name,
		"serial_number":       eq.SerialNumber,
		"category":            eq.Category,
		"department":          eq.Department,
		"location":            eq.Location,
		"purchase_date":       formatDate(eq.PurchaseDate),
		"warranty_end_date":   formatDate(eq.WarrantyEndDate),
		"maintenance_team_id": eq.MaintenanceTeamID.String(),
		"is_scrapped":         eq.IsScrapped,
	}
}

func requestToMap(req *models.MaintenanceRequest) map[string]interface{} {
	m := map[string]interface{}{
		"id":             req.ID.String(),
		"subject":        req.Subject,
		"equipment_id":   req.EquipmentID.String(),
		"equipment_name": req.EquipmentName,
		"team_id":        req.TeamID.String(),
		"assigned_to_id": optionalID(req.AssignedToID),
		"assignee_name":  req.AssigneeName,
		"request_type":   string(req.RequestType),
		"scheduled_date": nil,
		"duration_hours": nil,
		"status":         string(req.Status),
		"priority":       string(req.Priority),
		"created_by":     req.CreatedBy.String(),
		"created_at":     req.CreatedAt.UTC().Format(time.RFC3339),
	}
	if req.ScheduledDate != nil {
		m["scheduled_date"] = formatDate(*req.ScheduledDate)
	}
	if req.DurationHours != nil {
		m["duration_hours"] = *req.DurationHours
	}
	return m
}

func boardToMap(board *controller.Board) map[string]interface{} {
	columns := make([]interface{}, 0, len(board.Columns))
	for _, column := range board.Columns {
		cards := make([]interface{}, 0, len(column.Cards))
		for _, card := range column.Cards {
			m := requestToMap(card.Request)
			m["overdue"] = card.Overdue
			cards = append(cards, m)
		}
		columns = append(columns, map[string]interface{}{
			"status": string(column.Status),
			"cards":  cards,
		})
	}
	return map[string]interface{}{"columns": columns}
}

func calendarToMap(calendar *controller.Calendar) map[string]interface{} {
	days := make([]interface{}, 0, len(calendar.Days))
	for _, day := range calendar.Days {
		requests := make([]interface{}, 0, len(day.Requests))
		for _, req := range day.Requests {
			requests = append(requests, requestToMap(req))
		}
		days = append(days, map[string]interface{}{
			"date":     formatDate(day.Date),
			"requests": requests,
		})
	}
	return map[string]interface{}{
		"month": calendar.Month.Format(monthLayout),
		"days":  days,
	}
}

// mapServiceError maps domain or repository errors to gRPC status codes.
// Validation failures carry a BadRequest detail listing the offending fields.
func (h *MaintenanceHandler) mapServiceError(err error) error {
	var verr *e.ValidationError
	switch {
	case errors.As(err, &verr):
		st := status.New(codes.InvalidArgument, err.Error())
		br := &errdetails.BadRequest{}
		for _, v := range verr.Violations {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
				Field:       v.Field,
				Description: v.Description,
			})
		}
		detailed, detailErr := st.WithDetails(br)
		if detailErr != nil {
			h.logger.Warn("Failed to attach error details", zap.Error(detailErr))
			return st.Err()
		}
		return detailed.Err()
	case errors.Is(err, e.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, e.ErrAuthorization):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, e.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, e.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, e.ErrInvalidState):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, e.ErrRemote):
		h.logger.Error("Store call failed", zap.Error(err))
		return status.Error(codes.Unavailable, err.Error())
	default:
		h.logger.Error("Internal server error", zap.Error(err))
		return status.Errorf(codes.Internal, "internal server error: %v", err)
	}
}
