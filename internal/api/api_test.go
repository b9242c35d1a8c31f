package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/alphagov/transition-mappings/internal/batch"
	"github.com/alphagov/transition-mappings/internal/config"
	"github.com/alphagov/transition-mappings/internal/db"
	"github.com/alphagov/transition-mappings/internal/db/dbtest"
	"github.com/alphagov/transition-mappings/internal/logger"
	"github.com/alphagov/transition-mappings/internal/service"
)

type fakeQueue struct {
	ids []uint
	err error
}

func (q *fakeQueue) Enqueue(id uint) error {
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

type apiSuite struct {
	suite.Suite
	db     *gorm.DB
	queue  *fakeQueue
	router *gin.Engine
	token  string
}

func (s *apiSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (s *apiSuite) SetupTest() {
	ctx := context.Background()
	s.db = dbtest.New(s.T())
	_, err := service.CreateUser(ctx, s.db, "editor", "password")
	s.Require().NoError(err)
	_, err = service.CreateSite(ctx, s.db, "test", "significant", []string{"www.a.com"})
	s.Require().NoError(err)

	log := logger.NewNop()
	s.queue = &fakeQueue{}
	s.router = NewRouter(Deps{
		DB:      s.db,
		Auth:    config.AuthConfig{JWTSecret: "test-secret", TokenDuration: time.Hour},
		Batches: service.NewBatchService(s.db, batch.NewValidator([]string{"gov.uk"}, "support@example.gov.uk"), log),
		Queue:   s.queue,
		Log:     log,
	})

	w := s.do(http.MethodPost, "/auth/login", gin.H{"username": "editor", "password": "password"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var login LoginResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &login))
	s.token = login.Token
}

func (s *apiSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *apiSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *apiSuite) createBatch() uint {
	w := s.do(http.MethodPost, "/sites/test/batches", gin.H{
		"paths":    []string{"/a", "http://www.a.com/b"},
		"type":     "redirect",
		"new_url":  "https://www.gov.uk/new",
		"tag_list": "one,two",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	return uint(s.decode(w)["id"].(float64))
}

func (s *apiSuite) TestHealthAndMetrics() {
	w := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get("X-Request-ID"))

	w = s.do(http.MethodGet, "/metrics", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "transition_batch_queue_depth")
}

func (s *apiSuite) TestLoginFailures() {
	s.token = ""
	w := s.do(http.MethodPost, "/auth/login", gin.H{"username": "editor", "password": "wrong-password"})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/auth/login", gin.H{"username": "editor"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *apiSuite) TestAuthenticationRequired() {
	s.token = ""
	w := s.do(http.MethodGet, "/batches/1", nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	s.token = "not-a-token"
	w = s.do(http.MethodGet, "/batches/1", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *apiSuite) TestCreateBatch() {
	w := s.do(http.MethodPost, "/sites/test/batches", gin.H{
		"paths":    []string{"/a", "http://www.a.com/b"},
		"type":     "redirect",
		"new_url":  "https://www.gov.uk/new",
		"tag_list": "one,two",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	body := s.decode(w)
	s.Equal("uniform", body["kind"])
	s.Equal("pending", body["state"])
	s.Equal("301", body["http_status"])
	s.Equal([]any{"one", "two"}, body["tag_list"])
	s.Len(body["entries"], 2)
	s.Equal(float64(2), body["summary"].(map[string]any)["new_redirects"])
}

func (s *apiSuite) TestCreateBatchValidationErrors() {
	w := s.do(http.MethodPost, "/sites/test/batches", gin.H{
		"paths":   []string{"http://other.com/a"},
		"type":    "redirect",
		"new_url": "https://www.example.com",
	})
	s.Require().Equal(http.StatusUnprocessableEntity, w.Code)

	errs := s.decode(w)["errors"].(map[string]any)
	s.Equal([]any{batch.MsgPathsNotForSite}, errs["paths"])
	s.Len(errs["new_url"], 1)
}

func (s *apiSuite) TestUnknownSite() {
	w := s.do(http.MethodPost, "/sites/missing/imports", gin.H{"raw_csv": "/a,"})
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *apiSuite) TestImportAndProcess() {
	w := s.do(http.MethodPost, "/sites/test/imports", gin.H{
		"raw_csv": "old,new\n/a,https://www.gov.uk/a\n/b,TNA\n/c,\n",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	body := s.decode(w)
	s.Equal("per_row", body["kind"])
	id := uint(body["id"].(float64))

	w = s.do(http.MethodPost, fmt.Sprintf("/batches/%d/process", id), nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body = s.decode(w)
	s.Equal("succeeded", body["state"])
	s.Equal(float64(3), body["summary"].(map[string]any)["processed"])

	var mappings []db.Mapping
	s.Require().NoError(s.db.Order("path").Find(&mappings).Error)
	s.Require().Len(mappings, 3)
	s.Equal(db.TypeRedirect, mappings[0].Type)
	s.Equal(db.TypeArchive, mappings[1].Type)
	s.True(mappings[2].Unresolved)
}

func (s *apiSuite) TestProcessAsync() {
	id := s.createBatch()

	w := s.do(http.MethodPost, fmt.Sprintf("/batches/%d/process?async=true", id), nil)
	s.Equal(http.StatusAccepted, w.Code)
	s.Equal([]uint{id}, s.queue.ids)

	s.queue.err = fmt.Errorf("full")
	w = s.do(http.MethodPost, fmt.Sprintf("/batches/%d/process?async=true", id), nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)

	w = s.do(http.MethodPost, "/batches/999/process?async=true", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *apiSuite) TestGetAndDeleteBatch() {
	id := s.createBatch()
	path := fmt.Sprintf("/batches/%d", id)

	w := s.do(http.MethodGet, path, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Len(s.decode(w)["entries"], 2)

	w = s.do(http.MethodDelete, path, nil)
	s.Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, path, nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/batches/abc", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *apiSuite) TestRecordHostPath() {
	w := s.do(http.MethodPost, "/sites/test/host_paths", gin.H{"url": "http://www.a.com/About?x=1"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Equal("/About?x=1", s.decode(w)["path"])

	w = s.do(http.MethodPost, "/sites/test/host_paths", gin.H{"url": "http://other.com/about"})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.True(strings.Contains(w.Body.String(), "other.com"))
}

func TestAPI(t *testing.T) {
	suite.Run(t, new(apiSuite))
}
