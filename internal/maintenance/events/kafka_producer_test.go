package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gartstein/maintenance/internal/maintenance/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// MockKafkaWriter implements KafkaWriter for testing
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func requestEvent() Event {
	req := &models.MaintenanceRequest{ID: uuid.New(), EquipmentID: uuid.New(), Status: models.StatusScrap}
	return Event{Type: RequestStatusChanged, EntityID: req.ID, Request: req, PreviousStatus: models.StatusNew}
}

func TestProducer_Produce(t *testing.T) {
	t.Run("queues event", func(t *testing.T) {
		producer := newProducer(new(MockKafkaWriter), zaptest.NewLogger(t))

		producer.Produce(requestEvent())

		assert.Equal(t, 1, len(producer.events))
	})

	t.Run("dropped event when queue full", func(t *testing.T) {
		core, recorded := observer.New(zap.WarnLevel)
		producer := newProducer(new(MockKafkaWriter), zap.New(core))
		producer.events = make(chan Event, 1)

		producer.Produce(requestEvent())
		producer.Produce(requestEvent())

		assert.Equal(t, 1, recorded.FilterMessage("Kafka producer queue full, dropping event").Len())
	})
}

func TestProducer_SendEvent(t *testing.T) {
	event := requestEvent()

	t.Run("successful send keyed by entity", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(nil)
		producer := newProducer(mockWriter, zaptest.NewLogger(t))

		producer.sendEvent(context.Background(), event)

		require.Len(t, mockWriter.Calls, 1)
		msgs := mockWriter.Calls[0].Arguments.Get(1).([]kafka.Message)
		require.Len(t, msgs, 1)
		assert.Equal(t, []byte(event.EntityID.String()), msgs[0].Key)

		var decoded Event
		require.NoError(t, json.Unmarshal(msgs[0].Value, &decoded))
		assert.Equal(t, RequestStatusChanged, decoded.Type)
		assert.Equal(t, models.StatusScrap, decoded.Request.Status)
		assert.Equal(t, event.Request.EquipmentID, decoded.Request.EquipmentID)
		assert.Nil(t, decoded.Equipment)
	})

	t.Run("serialization error", func(t *testing.T) {
		core, recorded := observer.New(zap.ErrorLevel)
		producer := newProducer(new(MockKafkaWriter), zap.New(core))

		oldMarshal := jsonMarshal
		jsonMarshal = func(_ interface{}) ([]byte, error) {
			return nil, errors.New("mock marshal error")
		}
		defer func() { jsonMarshal = oldMarshal }()

		producer.sendEvent(context.Background(), event)

		assert.Equal(t, 1, recorded.FilterMessage("Failed to serialize event").Len())
		assert.Equal(t, 1, recorded.FilterField(zap.String("entity_id", event.EntityID.String())).Len())
	})

	t.Run("write error", func(t *testing.T) {
		core, recorded := observer.New(zap.ErrorLevel)
		mockWriter := new(MockKafkaWriter)
		mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("kafka error"))
		producer := newProducer(mockWriter, zap.New(core))

		producer.sendEvent(context.Background(), event)

		assert.Equal(t, 1, recorded.FilterMessage("Failed to produce event").Len())
	})
}

func TestProducer_Close(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	mockWriter.On("Close").Return(nil)
	producer := newProducer(mockWriter, zaptest.NewLogger(t))

	producer.Close()

	select {
	case <-producer.closeChan:
	default:
		t.Error("closeChan not closed")
	}
	mockWriter.AssertCalled(t, "Close")
}

func TestProducer_EventLoop(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	written := make(chan struct{}, 1)
	mockWriter.On("WriteMessages", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { written <- struct{}{} }).
		Return(nil)
	producer := newProducer(mockWriter, zaptest.NewLogger(t))

	go producer.eventLoop()
	defer close(producer.closeChan)

	producer.Produce(requestEvent())

	select {
	case <-written:
	case <-time.After(time.Second):
		t.Fatal("event was not written")
	}
}
