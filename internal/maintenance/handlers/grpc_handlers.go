package handlers

import (
	"context"
	"iter"
	"time"

	"github.com/gartstein/maintenance/internal/maintenance/controller"
	"github.com/gartstein/maintenance/internal/maintenance/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "maintenance.v1.MaintenanceService"

type TeamController interface {
	CreateTeam(ctx context.Context, name string) (*models.Team, error)
	ListTeams(ctx context.Context) ([]*models.Team, error)
	AssignMember(ctx context.Context, a models.Assignment) (*models.Profile, error)
	ListUnassigned(ctx context.Context) iter.Seq2[models.Profile, error]
}

type EquipmentController interface {
	Create(ctx context.Context, in models.EquipmentInput) (*models.Equipment, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Equipment, error)
	List(ctx context.Context) ([]*models.Equipment, error)
	OpenMaintenanceCount(ctx context.Context, equipmentID uuid.UUID) (int64, error)
}

type RequestController interface {
	Create(ctx context.Context, in models.RequestInput) (*models.MaintenanceRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*models.MaintenanceRequest, error)
	Transition(ctx context.Context, id uuid.UUID, to models.Status) (*models.MaintenanceRequest, error)
	Assign(ctx context.Context, id uuid.UUID, profileID *uuid.UUID) (*models.MaintenanceRequest, error)
	Board(ctx context.Context, equipmentID *uuid.UUID) (*controller.Board, error)
	Calendar(ctx context.Context, month time.Time) (*controller.Calendar, error)
}

// MaintenanceServer is the gRPC surface of the maintenance service. Every
// message is a google.protobuf.Struct.
type MaintenanceServer interface {
	CreateTeam(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTeams(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AssignMember(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListUnassigned(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateEquipment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEquipment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEquipment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	OpenRequestCount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TransitionRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AssignRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Board(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Calendar(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(MaintenanceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var methods = map[string]unaryMethod{
	"CreateTeam":        MaintenanceServer.CreateTeam,
	"ListTeams":         MaintenanceServer.ListTeams,
	"AssignMember":      MaintenanceServer.AssignMember,
	"ListUnassigned":    MaintenanceServer.ListUnassigned,
	"CreateEquipment":   MaintenanceServer.CreateEquipment,
	"GetEquipment":      MaintenanceServer.GetEquipment,
	"ListEquipment":     MaintenanceServer.ListEquipment,
	"OpenRequestCount":  MaintenanceServer.OpenRequestCount,
	"CreateRequest":     MaintenanceServer.CreateRequest,
	"GetRequest":        MaintenanceServer.GetRequest,
	"TransitionRequest": MaintenanceServer.TransitionRequest,
	"AssignRequest":     MaintenanceServer.AssignRequest,
	"Board":             MaintenanceServer.Board,
	"Calendar":          MaintenanceServer.Calendar,
}

// ServiceDesc registers a MaintenanceServer on a grpc.Server.
var ServiceDesc = newServiceDesc()

func newServiceDesc() grpc.ServiceDesc {
	desc := grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*MaintenanceServer)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "maintenance/v1/maintenance.proto",
	}
	for name, call := range methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    methodHandler(FullMethod(name), call),
		})
	}
	return desc
}

// FullMethod returns the gRPC path of a method of the service.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func methodHandler(fullMethod string, call unaryMethod) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MaintenanceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(MaintenanceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// MaintenanceHandler implements MaintenanceServer on top of the domain services.
type MaintenanceHandler struct {
	teams     TeamController
	equipment EquipmentController
	requests  RequestController
	logger    *zap.Logger
}

func NewMaintenanceHandler(teams TeamController, equipment EquipmentController, requests RequestController, logger *zap.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		teams:     teams,
		equipment: equipment,
		requests:  requests,
		logger:    logger.Named("grpc_handler"),
	}
}

func (h *MaintenanceHandler) CreateTeam(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newReader(req)
	name := r.str("name")
	if err := r.err(); err != nil {
		return nil, h.mapServiceError(err)
	}
	team, err := h.teams.CreateTeam(ctx, name)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return h.respond(teamToMap(team))
}

func (h *MaintenanceHandler) ListTeams(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	teams, err := h.teams.ListTeams(ctx)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	list := make([]interface{}, 0, len(teams))
	for _, team := range teams {
		list = append(list, teamToMap(team))
	}
	return h.respond(map[string]interface{}{"teams": list})
}

func (h *MaintenanceHandler) AssignMember(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newReader(req)
	assignment := models.Assignment{
		ProfileID: r.uuid("profile_id"),
		TeamID:    r.uuid("team_id"),
		Role:      models.Role(r.str("role")),
		Phone:     r.optString("phone"),
	}
	if err := r.err(); err != nil {
		return nil, h.mapServiceError(err)
	}

	profile, err := h.teams.AssignMember(ctx, assignment)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return h.respond(profileToMap(profile))
}

// ListUnassigned drains the lazy profile sequence into one response.
func (h *MaintenanceHandler) ListUnassigned(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	list := []interface{}{}
	for profile, err := range h.teams.ListUnassigned(ctx) {
		if err != nil {
			return nil, h.mapServiceError(err)
		}
		list = append(list, profileToMap(&profile))
	}
	return h.respond(map[string]interface{}{"profiles": list})
}

func (h *MaintenanceHandler) CreateEquipment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newReader(req)
	in := models.EquipmentInput{
		Name:              r.str("name"),
		SerialNumber:      r.str("serial_number"),
		Category:          r.str("category"),
		Department:        r.str("department"),
		Location:          r.str("location"),
		PurchaseDate:      r.date("purchase_date"),
		WarrantyEndDate:   r.date("warranty_end_date"),
		MaintenanceTeamID: r.uuid("maintenance_team_id"),
	}
	if err := r.err(); err != nil {
		return nil, h.mapServiceError(err)
	}

	equipment, err := h.equipment.Create(ctx, in)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return h.respond(equipmentToMap(equipment))
}

func (h *MaintenanceHandler) GetEquipment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return nil, err
	}
	equipment, err := h.equipment.Get(ctx, id)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return h.respond(equipmentToMap(equipment))
}

func (h *MaintenanceHandler) ListEquipment(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	equipment, err := h.equipment.List(ctx)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	list := make([]interface{}, 0, len(equipment))
	for _, eq := range equipment {
		list = append(list, equipmentToMap(eq))
	}
	return h.respond(map[string]interface{}{"equipment": list})
}

func (h *MaintenanceHandler) OpenRequestCount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return nil, err
	}
	count, err := h.equipment.OpenMaintenanceCount(ctx, id)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return h.respond(map[string]interface{}{"equipment_id": id.String(), "open_requests": count})
}

func (h *MaintenanceHandler) CreateRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newReader(req)
	in := models.RequestInput{
		Subject:       r.str("subject"),
		EquipmentID:   r.uuid("equipment_id"),
		TeamID:        r.optUUID("team_id"),
		AssignedToID:  r.optUUID("assigned_to_id"),
		RequestType:   models.RequestType(r.str("request_type")),
		ScheduledDate: r.optDate("scheduled_date"),
		DurationHours: r.optFloat("duration_hours"),
		Priority:      models.Priority(r.str("priority")),
		CreatedBy:     r.optUUID("created_by"),
	}
	if err := r.err(); err != nil {
		return nil, h.mapServiceError(err)
	}

	created, err := h.requests.Create(ctx, in)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return h.respond(requestToMap(created))
}

func (h *MaintenanceHandler) GetRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return nil, err
	}
	found, err := h.requests.Get(ctx, id)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return h.respond(requestToMap(found))
}

func (h *MaintenanceHandler) TransitionRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return nil, err
	}
	r := newReader(req)
	to := models.Status(r.str("status"))
	if err := r.err(); err != nil {
		return nil, h.mapServiceError(err)
	}
	updated, err := h.requests.Transition(ctx, id, to)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return h.respond(requestToMap(updated))
}

func (h *MaintenanceHandler) AssignRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return nil, err
	}
	r := newReader(req)
	profileID := r.optUUID("assigned_to_id")
	if err := r.err(); err != nil {
		return nil, h.mapServiceError(err)
	}

	updated, err := h.requests.Assign(ctx, id, profileID)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return h.respond(requestToMap(updated))
}

func (h *MaintenanceHandler) Board(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newReader(req)
	equipmentID := r.optUUID("equipment_id")
	if err := r.err(); err != nil {
		return nil, h.mapServiceError(err)
	}

	board, err := h.requests.Board(ctx, equipmentID)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return h.respond(boardToMap(board))
}

func (h *MaintenanceHandler) Calendar(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newReader(req)
	month := r.month("month")
	if err := r.err(); err != nil {
		return nil, h.mapServiceError(err)
	}

	calendar, err := h.requests.Calendar(ctx, month)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return h.respond(calendarToMap(calendar))
}

func (h *MaintenanceHandler) respond(fields map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func requireID(req *structpb.Struct, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(newReader(req).str(key))
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s", key)
	}
	return id, nil
}
