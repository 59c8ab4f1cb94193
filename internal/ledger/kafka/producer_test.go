package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"club-pos/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func record() models.SaleRecord {
	return models.SaleRecord{
		ID:        "sale-42",
		SoldAt:    time.Date(2024, 6, 15, 19, 30, 5, 0, time.UTC),
		EventID:   "samstag",
		EventName: "Samstag",
		Lines: []models.SaleLine{
			{CategoryID: "kind", Quantity: 2},
			{CategoryID: "erwachsen", Quantity: 1},
		},
		Total:         decimal.RequireFromString("24.00"),
		PaymentMethod: "Bar",
	}
}

func TestProducerAppend(t *testing.T) {
	writer := new(MockWriter)
	var sent []kafka.Message
	writer.On("WriteMessages", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).([]kafka.Message) }).
		Return(nil).Once()

	p := &Producer{Writer: writer, Topic: "club.pos.sales"}
	require.NoError(t, p.Append(context.Background(), record()))

	require.Len(t, sent, 1)
	assert.Equal(t, []byte("sale-42"), sent[0].Key)
	assert.Equal(t, "event-type", sent[0].Headers[0].Key)

	var event SaleEvent
	require.NoError(t, json.Unmarshal(sent[0].Value, &event))
	assert.Equal(t, SaleCompletedEvent, event.Type)
	assert.Equal(t, "sale-42", event.Sale.ID)
	assert.Equal(t, []string{"2024-06-15", "19:30:05", "Samstag", "2", "1", "€24.00", "Bar"}, event.Row)
	writer.AssertExpectations(t)
}

func TestProducerAppendError(t *testing.T) {
	writer := new(MockWriter)
	writer.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	p := &Producer{Writer: writer, Topic: "club.pos.sales"}
	err := p.Append(context.Background(), record())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "club.pos.sales")
	assert.Contains(t, err.Error(), "broker down")
}

func TestNewProducerWritesEachSaleImmediately(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "club.pos.sales")
	defer p.Close()

	writer, ok := p.Writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, 1, writer.BatchSize)
	assert.LessOrEqual(t, writer.BatchTimeout, 10*time.Millisecond)
	assert.False(t, writer.Async, "sink failures must reach the caller")
	assert.Equal(t, "club.pos.sales", writer.Topic)
}

func TestEnsureTopicsRequiresBrokers(t *testing.T) {
	assert.Error(t, EnsureTopicsExist(nil, []string{"club.pos.sales"}, nil))
}
