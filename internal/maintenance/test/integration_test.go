package test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gartstein/maintenance/internal/maintenance/auth"
	"github.com/gartstein/maintenance/internal/maintenance/cache"
	"github.com/gartstein/maintenance/internal/maintenance/controller"
	"github.com/gartstein/maintenance/internal/maintenance/db"
	"github.com/gartstein/maintenance/internal/maintenance/events"
	"github.com/gartstein/maintenance/internal/maintenance/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const (
	kafkaBroker = "localhost:9092"
	topic       = "maintenance.events"
)

type IntegrationTestSuite struct {
	suite.Suite
	dbRepo      *db.Repository
	kafkaReader *kafka.Reader
	producer    *events.Producer
	logger      *zap.Logger
	testTimeout time.Duration

	manager *models.Profile
	team    *models.Team
}

func TestIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests")
	}
	suite.Run(t, new(IntegrationTestSuite))
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.logger = zap.NewNop()
	s.testTimeout = 20 * time.Second

	var err error
	s.dbRepo, err = initializeDBWithRetry()
	if err != nil {
		s.T().Fatal("Database initialization failed:", err)
	}
	s.producer, s.kafkaReader, err = initializeKafkaWithRetry()
	if err != nil {
		s.T().Fatal("Kafka initialization failed:", err)
	}
}

func initializeDBWithRetry() (*db.Repository, error) {
	cfg := &db.Config{
		Host:     "localhost",
		Port:     5432,
		User:     "test",
		Password: "test",
		DBName:   "test",
		SSLMode:  "disable",
	}

	var repo *db.Repository
	err := backoff.Retry(func() error {
		var err error
		repo, err = db.NewRepository(cfg)
		return err
	}, backoff.NewExponentialBackOff())
	return repo, err
}

func initializeKafkaWithRetry() (*events.Producer, *kafka.Reader, error) {
	var producer *events.Producer
	err := backoff.Retry(func() error {
		var err error
		producer, err = events.NewProducer([]string{kafkaBroker}, zap.NewNop(), topic)
		if err != nil || producer == nil {
			return fmt.Errorf("failed to create Kafka producer: %v", err)
		}
		return nil
	}, backoff.NewExponentialBackOff())
	if err != nil {
		return nil, nil, fmt.Errorf("Kafka producer initialization failed: %w", err)
	}

	err = backoff.Retry(func() error {
		conn, err := kafka.Dial("tcp", kafkaBroker)
		if err != nil {
			return err
		}
		defer conn.Close()

		partitions, err := conn.ReadPartitions(topic)
		if err != nil || len(partitions) == 0 {
			return fmt.Errorf("topic %s not found", topic)
		}
		return nil
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5))
	if err != nil {
		return nil, nil, fmt.Errorf("Kafka topic check failed: %w", err)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{kafkaBroker},
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	return producer, reader, nil
}

func (s *IntegrationTestSuite) TearDownSuite() {
	if s.kafkaReader != nil {
		_ = s.kafkaReader.Close()
	}
	if s.producer != nil {
		s.producer.Close()
	}
	if s.dbRepo != nil {
		_ = s.dbRepo.Close()
	}
}

func (s *IntegrationTestSuite) SetupTest() {
	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()

	if err := s.dbRepo.Exec(ctx, "TRUNCATE TABLE maintenance_requests, equipment, credentials, profiles, teams CASCADE"); err != nil {
		s.T().Fatal("Failed to clean database:", err)
	}

	s.team = &models.Team{ID: uuid.New(), Name: "Mechanics"}
	s.Require().NoError(s.dbRepo.CreateTeam(ctx, s.team))
	s.manager = &models.Profile{
		ID:       uuid.New(),
		FullName: "Mitchell Admin",
		Email:    "admin@example.com",
		Role:     models.RoleManager,
		TeamID:   &s.team.ID,
	}
	s.Require().NoError(s.dbRepo.CreateProfile(ctx, s.manager))
}

func (s *IntegrationTestSuite) callerContext(ctx context.Context) context.Context {
	return auth.WithPrincipal(ctx, auth.Principal{ProfileID: s.manager.ID, Email: s.manager.Email})
}

func (s *IntegrationTestSuite) TestScrapLifecycle() {
	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()
	ctx = s.callerContext(ctx)

	opts := []controller.Option{controller.WithCache(cache.NewMemoryStore(), time.Minute)}
	equipmentSvc := controller.NewEquipmentService(s.dbRepo, s.producer, s.logger, opts...)
	requestSvc := controller.NewRequestService(s.dbRepo, s.producer, s.logger, opts...)

	equipment, err := equipmentSvc.Create(ctx, models.EquipmentInput{
		Name:              "Hydraulic Press",
		SerialNumber:      "HP-" + uuid.NewString(),
		Category:          "Press",
		Department:        "Production",
		Location:          "Hall B",
		PurchaseDate:      time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC),
		WarrantyEndDate:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		MaintenanceTeamID: s.team.ID,
	})
	s.Require().NoError(err)

	req, err := requestSvc.Create(ctx, models.RequestInput{Subject: "Seal leak", EquipmentID: equipment.ID})
	s.Require().NoError(err)
	s.Require().NotNil(req.TeamID)
	assert.Equal(s.T(), s.team.ID, req.TeamID)

	open, err := equipmentSvc.OpenMaintenanceCount(ctx, equipment.ID)
	s.Require().NoError(err)
	assert.EqualValues(s.T(), 1, open)

	_, err = requestSvc.Transition(ctx, req.ID, models.StatusInProgress)
	s.Require().NoError(err)
	scrapped, err := requestSvc.Transition(ctx, req.ID, models.StatusScrap)
	s.Require().NoError(err)
	assert.Equal(s.T(), models.StatusScrap, scrapped.Status)

	stored, err := s.dbRepo.GetEquipment(ctx, equipment.ID)
	s.Require().NoError(err)
	assert.True(s.T(), stored.IsScrapped)

	event := s.consumeKafkaEvent(ctx, events.RequestStatusChanged, req.ID, func(ev events.Event) bool {
		return ev.Request != nil && ev.Request.Status == models.StatusScrap
	})
	assert.Equal(s.T(), models.StatusInProgress, event.PreviousStatus)
	assert.Equal(s.T(), equipment.ID, event.Request.EquipmentID)
}

func (s *IntegrationTestSuite) TestReconcilerReplaysScrap() {
	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()

	equipment := &models.Equipment{
		ID:                uuid.New(),
		Name:              "Conveyor",
		SerialNumber:      "CV-" + uuid.NewString(),
		Category:          "Conveyor",
		Department:        "Logistics",
		Location:          "Dock 1",
		PurchaseDate:      time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		WarrantyEndDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		MaintenanceTeamID: s.team.ID,
	}
	s.Require().NoError(s.dbRepo.CreateEquipment(ctx, equipment))

	reconciler := events.NewScrapReconciler(s.dbRepo, s.logger)
	err := reconciler.Handle(ctx, events.Event{
		Type:     events.RequestStatusChanged,
		EntityID: uuid.New(),
		Request: &models.MaintenanceRequest{
			ID:          uuid.New(),
			EquipmentID: equipment.ID,
			Status:      models.StatusScrap,
		},
	})
	s.Require().NoError(err)

	stored, err := s.dbRepo.GetEquipment(ctx, equipment.ID)
	s.Require().NoError(err)
	assert.True(s.T(), stored.IsScrapped)
}

func (s *IntegrationTestSuite) consumeKafkaEvent(ctx context.Context, eventType events.EventType, entityID uuid.UUID, match func(events.Event) bool) events.Event {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	maxRetries := 200
	attempts := 0
	for {
		select {
		case <-ctx.Done():
			s.T().Fatalf("Timeout: No %s event received after %d attempts", eventType, attempts)
			return events.Event{}
		default:
			if attempts >= maxRetries {
				s.T().Fatalf("Max retry attempts reached for %s", eventType)
				return events.Event{}
			}
			msg, err := s.kafkaReader.ReadMessage(ctx)
			if err != nil {
				s.T().Logf("Kafka read attempt %d failed: %v", attempts, err)
				attempts++
				time.Sleep(time.Second)
				continue
			}
			if string(msg.Key) != entityID.String() {
				attempts++
				continue
			}
			var event events.Event
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				s.T().Fatalf("Failed to unmarshal Kafka message: %v", err)
			}
			if event.Type != eventType || !match(event) {
				s.T().Logf("Skipping %s event for %s", event.Type, entityID)
				attempts++
				continue
			}
			return event
		}
	}
}
