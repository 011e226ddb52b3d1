package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
	"github.com/allisson/extractvault/internal/elevation"
	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
	"github.com/allisson/extractvault/internal/extraction/http/dto"
	extractionUseCase "github.com/allisson/extractvault/internal/extraction/usecase"
	"github.com/allisson/extractvault/internal/extraction/usecase/mocks"
)

func setupTestHandler(t *testing.T) (*ExtractionHandler, *mocks.MockExtractionUseCase) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	mockUseCase := &mocks.MockExtractionUseCase{}
	t.Cleanup(func() { mockUseCase.AssertExpectations(t) })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewExtractionHandler(mockUseCase, logger), mockUseCase
}

func createTestContext(method, url string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		payload, _ := json.Marshal(v)
		reader = bytes.NewBuffer(payload)
	}

	c.Request = httptest.NewRequest(method, url, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func withAuth(c *gin.Context, auth extractionDomain.AuthContext) {
	c.Request = c.Request.WithContext(elevation.WithAuthContext(c.Request.Context(), auth))
}

func sampleRecord(state extractionDomain.ReviewState) *extractionDomain.ExtractionRecord {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	return &extractionDomain.ExtractionRecord{
		ID:            uuid.Must(uuid.NewV7()),
		DocumentID:    "doc-1",
		ApplicationID: "app-1",
		UserID:        "user-1",
		PublicView: map[extractionDomain.FieldName]string{
			extractionDomain.FieldSSN:          "***-**-6789",
			extractionDomain.FieldBusinessName: "Acme LLC",
		},
		EncryptedFields: map[extractionDomain.FieldName]cryptoDomain.Envelope{
			extractionDomain.FieldSSN: {KeyID: "k1", Ciphertext: []byte{1, 2, 3}},
		},
		ContentHash: "hash",
		Confidence:  decimal.RequireFromString("0.9"),
		CreatedAt:   now,
		ExpiresAt:   now.Add(extractionDomain.DefaultRetentionWindow),
		ReviewState: state,
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func TestExtractionHandler_IngestHandler(t *testing.T) {
	document := []byte("%PDF scanned w9")
	auth := extractionDomain.AuthContext{ActorID: "user-1"}

	t.Run("Success_WithFields", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)
		record := sampleRecord(extractionDomain.StateExtracted)

		mockUseCase.On("Ingest", mock.Anything, mock.MatchedBy(func(in extractionUseCase.IngestInput) bool {
			return in.ApplicationID == "app-1" &&
				in.DocumentID == "doc-1" &&
				in.Fields["ssn"] == "123-45-6789" &&
				in.UserID == "user-1" &&
				in.Confidence == "0.9" &&
				bytes.Equal(in.DocumentBytes, document) &&
				in.Provenance.UserAgent == "scanner/1.0"
		})).Return(record, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/applications/app-1/extractions", dto.IngestExtractionRequest{
			DocumentID: "doc-1",
			UserID:     "user-1",
			Document:   base64.StdEncoding.EncodeToString(document),
			Fields:     map[string]string{"ssn": "123-45-6789"},
			Confidence: "0.9",
		})
		c.Request.Header.Set("User-Agent", "scanner/1.0")
		c.Params = gin.Params{{Key: "applicationId", Value: "app-1"}}
		withAuth(c, auth)

		handler.IngestHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		var response dto.ExtractionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, record.ID.String(), response.ID)
		assert.Equal(t, "***-**-6789", response.PublicView["ssn"])
		assert.NotContains(t, w.Body.String(), "123-45-6789")
	})

	t.Run("Success_WithoutFieldsCallsExtractor", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)
		record := sampleRecord(extractionDomain.StateExtracted)

		mockUseCase.On("ExtractAndIngest", mock.Anything, mock.MatchedBy(func(in extractionUseCase.IngestInput) bool {
			return in.Fields == nil && bytes.Equal(in.DocumentBytes, document)
		})).Return(record, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/applications/app-1/extractions", dto.IngestExtractionRequest{
			DocumentID: "doc-1",
			UserID:     "user-1",
			Document:   base64.StdEncoding.EncodeToString(document),
		})
		c.Params = gin.Params{{Key: "applicationId", Value: "app-1"}}
		withAuth(c, auth)

		handler.IngestHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("Error_InvalidJSON", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/applications/app-1/extractions", "{not json")
		c.Params = gin.Params{{Key: "applicationId", Value: "app-1"}}

		handler.IngestHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decodeError(t, w)["error"])
	})

	t.Run("Error_ValidationFailed", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/applications/app-1/extractions", dto.IngestExtractionRequest{
			UserID:   "user-1",
			Document: base64.StdEncoding.EncodeToString(document),
		})
		c.Params = gin.Params{{Key: "applicationId", Value: "app-1"}}

		handler.IngestHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "validation_error", decodeError(t, w)["error"])
	})

	t.Run("Error_InvalidApplicationID", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/applications/%20/extractions", nil)
		c.Params = gin.Params{{Key: "applicationId", Value: " "}}

		handler.IngestHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_NoExtractableData", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		mockUseCase.On("Ingest", mock.Anything, mock.Anything).
			Return(nil, extractionDomain.ErrNoExtractableData).Once()

		c, w := createTestContext(http.MethodPost, "/v1/applications/app-1/extractions", dto.IngestExtractionRequest{
			DocumentID: "doc-1",
			UserID:     "user-1",
			Document:   base64.StdEncoding.EncodeToString(document),
			Fields:     map[string]string{"city": "  "},
			Confidence: "0.5",
		})
		c.Params = gin.Params{{Key: "applicationId", Value: "app-1"}}
		withAuth(c, auth)

		handler.IngestHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "invalid_input", decodeError(t, w)["error"])
	})

	t.Run("Success_UserIDDefaultsToSubject", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)
		record := sampleRecord(extractionDomain.StateExtracted)

		mockUseCase.On("Ingest", mock.Anything, mock.MatchedBy(func(in extractionUseCase.IngestInput) bool {
			return in.UserID == "user-1"
		})).Return(record, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/applications/app-1/extractions", dto.IngestExtractionRequest{
			DocumentID: "doc-1",
			Document:   base64.StdEncoding.EncodeToString(document),
			Fields:     map[string]string{"ssn": "123-45-6789"},
			Confidence: "0.9",
		})
		c.Params = gin.Params{{Key: "applicationId", Value: "app-1"}}
		withAuth(c, auth)

		handler.IngestHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("Error_UserIDDoesNotMatchSubject", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/applications/app-1/extractions", dto.IngestExtractionRequest{
			DocumentID: "doc-1",
			UserID:     "someone-else",
			Document:   base64.StdEncoding.EncodeToString(document),
			Fields:     map[string]string{"ssn": "123-45-6789"},
			Confidence: "0.9",
		})
		c.Params = gin.Params{{Key: "applicationId", Value: "app-1"}}
		withAuth(c, auth)

		handler.IngestHandler(c)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "forbidden", decodeError(t, w)["error"])
	})

	t.Run("Error_NoAuthContext", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/applications/app-1/extractions", dto.IngestExtractionRequest{
			DocumentID: "doc-1",
			Document:   base64.StdEncoding.EncodeToString(document),
		})
		c.Params = gin.Params{{Key: "applicationId", Value: "app-1"}}

		handler.IngestHandler(c)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestExtractionHandler_ListHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)
		records := []*extractionDomain.ExtractionRecord{
			sampleRecord(extractionDomain.StateExtracted),
			sampleRecord(extractionDomain.StateReviewed),
		}

		mockUseCase.On("ListByApplication", mock.Anything, "app-1", 10, 20).Return(records, nil).Once()

		c, w := createTestContext(http.MethodGet, "/v1/applications/app-1/extractions?offset=10&limit=20", nil)
		c.Params = gin.Params{{Key: "applicationId", Value: "app-1"}}

		handler.ListHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var response dto.ListExtractionsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Len(t, response.Data, 2)
	})

	t.Run("Error_InvalidPagination", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodGet, "/v1/applications/app-1/extractions?limit=500", nil)
		c.Params = gin.Params{{Key: "applicationId", Value: "app-1"}}

		handler.ListHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestExtractionHandler_GetHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)
		record := sampleRecord(extractionDomain.StateExtracted)

		mockUseCase.On("Get", mock.Anything, record.ID).Return(record, nil).Once()

		c, w := createTestContext(http.MethodGet, "/v1/extractions/"+record.ID.String(), nil)
		c.Params = gin.Params{{Key: "id", Value: record.ID.String()}}

		handler.GetHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"encrypted_fields":["ssn"]`)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)
		id := uuid.Must(uuid.NewV7())

		mockUseCase.On("Get", mock.Anything, id).Return(nil, extractionDomain.ErrRecordNotFound).Once()

		c, w := createTestContext(http.MethodGet, "/v1/extractions/"+id.String(), nil)
		c.Params = gin.Params{{Key: "id", Value: id.String()}}

		handler.GetHandler(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_found", decodeError(t, w)["error"])
	})

	t.Run("Error_InvalidID", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodGet, "/v1/extractions/nope", nil)
		c.Params = gin.Params{{Key: "id", Value: "nope"}}

		handler.GetHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestExtractionHandler_PublicViewHandler(t *testing.T) {
	handler, mockUseCase := setupTestHandler(t)
	id := uuid.Must(uuid.NewV7())

	mockUseCase.On("GetPublicView", mock.Anything, id).Return(map[extractionDomain.FieldName]string{
		extractionDomain.FieldTaxID: "**-***6789",
	}, nil).Once()

	c, w := createTestContext(http.MethodGet, "/v1/extractions/"+id.String()+"/public-view", nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	handler.PublicViewHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_view":{"taxId":"**-***6789"}}`, w.Body.String())
}

func TestExtractionHandler_DecryptFieldHandler(t *testing.T) {
	auth := extractionDomain.AuthContext{ActorID: "reviewer-1", ElevatedUntil: time.Now().Add(time.Minute)}

	t.Run("Success", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)
		id := uuid.Must(uuid.NewV7())

		mockUseCase.On("DecryptField", mock.Anything, id, extractionDomain.FieldSSN, auth).
			Return([]byte("123-45-6789"), nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/extractions/"+id.String()+"/fields/ssn/decrypt", nil)
		c.Params = gin.Params{{Key: "id", Value: id.String()}, {Key: "field", Value: "ssn"}}
		withAuth(c, auth)

		handler.DecryptFieldHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"field":"ssn","value":"123-45-6789"}`, w.Body.String())
	})

	t.Run("Error_ElevationRequired", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)
		id := uuid.Must(uuid.NewV7())

		mockUseCase.On("DecryptField", mock.Anything, id, extractionDomain.FieldSSN, auth).
			Return(nil, extractionDomain.ErrElevationRequired).Once()

		c, w := createTestContext(http.MethodPost, "/v1/extractions/"+id.String()+"/fields/ssn/decrypt", nil)
		c.Params = gin.Params{{Key: "id", Value: id.String()}, {Key: "field", Value: "ssn"}}
		withAuth(c, auth)

		handler.DecryptFieldHandler(c)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "forbidden", decodeError(t, w)["error"])
	})

	t.Run("Error_UnknownField", func(t *testing.T) {
		handler, _ := setupTestHandler(t)
		id := uuid.Must(uuid.NewV7())

		c, w := createTestContext(http.MethodPost, "/v1/extractions/"+id.String()+"/fields/pin/decrypt", nil)
		c.Params = gin.Params{{Key: "id", Value: id.String()}, {Key: "field", Value: "pin"}}
		withAuth(c, auth)

		handler.DecryptFieldHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_NoAuthContext", func(t *testing.T) {
		handler, _ := setupTestHandler(t)
		id := uuid.Must(uuid.NewV7())

		c, w := createTestContext(http.MethodPost, "/v1/extractions/"+id.String()+"/fields/ssn/decrypt", nil)
		c.Params = gin.Params{{Key: "id", Value: id.String()}, {Key: "field", Value: "ssn"}}

		handler.DecryptFieldHandler(c)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestExtractionHandler_ReviewHandler(t *testing.T) {
	auth := extractionDomain.AuthContext{ActorID: "reviewer-1"}

	t.Run("Success", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)
		record := sampleRecord(extractionDomain.StateReviewed)

		mockUseCase.On("MarkReviewed", mock.Anything, record.ID, auth).Return(record, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/extractions/"+record.ID.String()+"/review", nil)
		c.Params = gin.Params{{Key: "id", Value: record.ID.String()}}
		withAuth(c, auth)

		handler.ReviewHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"review_state":"REVIEWED"`)
	})

	t.Run("Error_InvalidTransition", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)
		id := uuid.Must(uuid.NewV7())

		mockUseCase.On("MarkReviewed", mock.Anything, id, auth).
			Return(nil, extractionDomain.ErrInvalidTransition).Once()

		c, w := createTestContext(http.MethodPost, "/v1/extractions/"+id.String()+"/review", nil)
		c.Params = gin.Params{{Key: "id", Value: id.String()}}
		withAuth(c, auth)

		handler.ReviewHandler(c)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "conflict", decodeError(t, w)["error"])
	})
}

func TestExtractionHandler_ApplyHandler(t *testing.T) {
	auth := extractionDomain.AuthContext{ActorID: "reviewer-1", ElevatedUntil: time.Now().Add(time.Minute)}

	t.Run("Success", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)
		record := sampleRecord(extractionDomain.StateApplied)
		target := "app-9"
		record.AppliedTo = &target

		mockUseCase.On("ApplyToApplication", mock.Anything, record.ID, "app-9", auth).Return(record, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/extractions/"+record.ID.String()+"/apply",
			dto.ApplyExtractionRequest{TargetApplicationID: "app-9"})
		c.Params = gin.Params{{Key: "id", Value: record.ID.String()}}
		withAuth(c, auth)

		handler.ApplyHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"applied_to":"app-9"`)
	})

	t.Run("Error_NotReviewed", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)
		id := uuid.Must(uuid.NewV7())

		mockUseCase.On("ApplyToApplication", mock.Anything, id, "app-9", auth).
			Return(nil, extractionDomain.ErrNotReviewed).Once()

		c, w := createTestContext(http.MethodPost, "/v1/extractions/"+id.String()+"/apply",
			dto.ApplyExtractionRequest{TargetApplicationID: "app-9"})
		c.Params = gin.Params{{Key: "id", Value: id.String()}}
		withAuth(c, auth)

		handler.ApplyHandler(c)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "precondition_failed", decodeError(t, w)["error"])
	})

	t.Run("Error_MissingTarget", func(t *testing.T) {
		handler, _ := setupTestHandler(t)
		id := uuid.Must(uuid.NewV7())

		c, w := createTestContext(http.MethodPost, "/v1/extractions/"+id.String()+"/apply",
			dto.ApplyExtractionRequest{})
		c.Params = gin.Params{{Key: "id", Value: id.String()}}
		withAuth(c, auth)

		handler.ApplyHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}
