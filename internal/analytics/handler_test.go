package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"starterkit_backend/internal/activity"
	"starterkit_backend/internal/common"
	"starterkit_backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) SignupsByDay(ctx context.Context, days int) ([]SignupBucket, error) {
	args := m.Called(ctx, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]SignupBucket), args.Error(1)
}

func (m *MockService) ActivitySummary(ctx context.Context, limit int) ([]UserActivity, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]UserActivity), args.Error(1)
}

func (m *MockService) ExtendSessions(ctx context.Context, req ExtendSessionsRequest) (int64, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(int64), args.Error(1)
}

type stubRecorder struct {
	events []activity.Event
	err    error
	last   activity.Query
}

func (s *stubRecorder) Record(context.Context, activity.Event) error { return nil }

func (s *stubRecorder) Search(_ context.Context, q activity.Query) ([]activity.Event, int64, error) {
	s.last = q
	return s.events, int64(len(s.events)), s.err
}

// withRole stands in for the session middleware.
func withRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(common.UserIDKey, "admin-1")
		c.Set(common.UserRoleKey, role)
		c.Next()
	}
}

func setupHandlerTest(role string) (*gin.Engine, *MockService, *stubRecorder) {
	gin.SetMode(gin.TestMode)
	svc := new(MockService)
	rec := &stubRecorder{}
	r := gin.New()
	NewHandler(svc, rec, zap.NewNop()).RegisterRoutes(r.Group("/api/v1"), withRole(role), middleware.RoleAuthMiddleware(common.RoleAdmin))
	return r, svc, rec
}

func perform(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_RequiresAdmin(t *testing.T) {
	r, svc, _ := setupHandlerTest(common.RoleUser)
	w := perform(r, http.MethodGet, "/api/v1/admin/stats/signups", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	svc.AssertNotCalled(t, "SignupsByDay", mock.Anything, mock.Anything)
}

func TestHandler_Signups(t *testing.T) {
	r, svc, _ := setupHandlerTest(common.RoleAdmin)
	day := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	svc.On("SignupsByDay", mock.Anything, 14).Return([]SignupBucket{{Day: day, Count: 3}}, nil).Once()
	svc.On("SignupsByDay", mock.Anything, 0).Return(nil, nil).Once()

	w := perform(r, http.MethodGet, "/api/v1/admin/stats/signups?days=14", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []SignupBucket `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.EqualValues(t, 3, body.Data[0].Count)

	w = perform(r, http.MethodGet, "/api/v1/admin/stats/signups", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)

	assert.Equal(t, http.StatusUnprocessableEntity, perform(r, http.MethodGet, "/api/v1/admin/stats/signups?days=1000", nil).Code)
	svc.AssertExpectations(t)
}

func TestHandler_ActivitySummaryError(t *testing.T) {
	r, svc, _ := setupHandlerTest(common.RoleAdmin)
	svc.On("ActivitySummary", mock.Anything, 0).Return(nil, errors.New("boom")).Once()

	w := perform(r, http.MethodGet, "/api/v1/admin/activity-summary", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandler_ExtendSessions(t *testing.T) {
	r, svc, _ := setupHandlerTest(common.RoleAdmin)
	req := ExtendSessionsRequest{SessionTokens: []string{"a", "b"}, Days: 7}
	svc.On("ExtendSessions", mock.Anything, req).Return(int64(1), nil).Once()

	w := perform(r, http.MethodPost, "/api/v1/admin/sessions/extend", req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"extended":1`)

	invalid := []interface{}{
		gin.H{"sessionTokens": []string{}, "days": 7},
		gin.H{"sessionTokens": []string{"a"}, "days": 0},
		gin.H{"sessionTokens": []string{""}, "days": 7},
		gin.H{"sessionTokens": []string{"a"}, "days": 365},
	}
	for _, body := range invalid {
		assert.Equal(t, http.StatusUnprocessableEntity, perform(r, http.MethodPost, "/api/v1/admin/sessions/extend", body).Code)
	}
	svc.AssertExpectations(t)
}

func TestHandler_SearchActivity(t *testing.T) {
	r, _, rec := setupHandlerTest(common.RoleAdmin)
	rec.events = []activity.Event{{Type: activity.EventSignIn, UserID: "u1"}}

	w := perform(r, http.MethodGet, "/api/v1/admin/activity?user_id=u1&type=sign_in&page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, activity.Query{
		UserID:          "u1",
		Type:            "sign_in",
		PaginationQuery: common.PaginationQuery{Page: 1, PageSize: 10},
	}, rec.last)
	assert.Contains(t, w.Body.String(), `"items":[{`)
	assert.Contains(t, w.Body.String(), `"user_id":"u1"`)
	assert.Contains(t, w.Body.String(), `"total_items":1`)

	rec.events = nil
	w = perform(r, http.MethodGet, "/api/v1/admin/activity", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items":[]`)

	w = perform(r, http.MethodGet, "/api/v1/admin/activity?page_size=1000", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	rec.err = errors.New("cluster red")
	w = perform(r, http.MethodGet, "/api/v1/admin/activity", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
