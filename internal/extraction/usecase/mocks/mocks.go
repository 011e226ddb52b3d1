// Package mocks provides mock implementations of the extraction use cases for testing.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
	extractionUseCase "github.com/allisson/extractvault/internal/extraction/usecase"
)

// MockExtractionUseCase is a mock implementation of ExtractionUseCase.
type MockExtractionUseCase struct {
	mock.Mock
}

func recordOrNil(args mock.Arguments) (*extractionDomain.ExtractionRecord, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*extractionDomain.ExtractionRecord), args.Error(1)
}

// Ingest mocks the Ingest method.
func (m *MockExtractionUseCase) Ingest(
	ctx context.Context,
	input extractionUseCase.IngestInput,
) (*extractionDomain.ExtractionRecord, error) {
	return recordOrNil(m.Called(ctx, input))
}

// ExtractAndIngest mocks the ExtractAndIngest method.
func (m *MockExtractionUseCase) ExtractAndIngest(
	ctx context.Context,
	input extractionUseCase.IngestInput,
) (*extractionDomain.ExtractionRecord, error) {
	return recordOrNil(m.Called(ctx, input))
}

// Get mocks the Get method.
func (m *MockExtractionUseCase) Get(ctx context.Context, id uuid.UUID) (*extractionDomain.ExtractionRecord, error) {
	return recordOrNil(m.Called(ctx, id))
}

// GetPublicView mocks the GetPublicView method.
func (m *MockExtractionUseCase) GetPublicView(
	ctx context.Context,
	id uuid.UUID,
) (map[extractionDomain.FieldName]string, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[extractionDomain.FieldName]string), args.Error(1)
}

// ListByApplication mocks the ListByApplication method.
func (m *MockExtractionUseCase) ListByApplication(
	ctx context.Context,
	applicationID string,
	offset, limit int,
) ([]*extractionDomain.ExtractionRecord, error) {
	args := m.Called(ctx, applicationID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*extractionDomain.ExtractionRecord), args.Error(1)
}

// DecryptField mocks the DecryptField method.
func (m *MockExtractionUseCase) DecryptField(
	ctx context.Context,
	id uuid.UUID,
	field extractionDomain.FieldName,
	auth extractionDomain.AuthContext,
) ([]byte, error) {
	args := m.Called(ctx, id, field, auth)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MarkReviewed mocks the MarkReviewed method.
func (m *MockExtractionUseCase) MarkReviewed(
	ctx context.Context,
	id uuid.UUID,
	auth extractionDomain.AuthContext,
) (*extractionDomain.ExtractionRecord, error) {
	return recordOrNil(m.Called(ctx, id, auth))
}

// ApplyToApplication mocks the ApplyToApplication method.
func (m *MockExtractionUseCase) ApplyToApplication(
	ctx context.Context,
	id uuid.UUID,
	targetApplicationID string,
	auth extractionDomain.AuthContext,
) (*extractionDomain.ExtractionRecord, error) {
	return recordOrNil(m.Called(ctx, id, targetApplicationID, auth))
}

// MockSweeperUseCase is a mock implementation of SweeperUseCase.
type MockSweeperUseCase struct {
	mock.Mock
}

// Start mocks the Start method.
func (m *MockSweeperUseCase) Start(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Sweep mocks the Sweep method.
func (m *MockSweeperUseCase) Sweep(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// CountExpired mocks the CountExpired method.
func (m *MockSweeperUseCase) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}
