package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/barberq/scheduling-core/internal/engine"
	"github.com/barberq/scheduling-core/internal/handlers"
	"github.com/barberq/scheduling-core/internal/models"
	"github.com/barberq/scheduling-core/internal/repository"
	"github.com/barberq/scheduling-core/pkg/logger"
)

type AvailabilityHandlerTestSuite struct {
	suite.Suite
	DB     *gorm.DB
	Router *gin.Engine
}

func (s *AvailabilityHandlerTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (s *AvailabilityHandlerTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(&models.Service{}, &models.AddOn{}, &models.Barber{}, &models.DayOff{}, &models.Appointment{}, &models.IdempotencyRecord{}))
	s.DB = db

	s.Require().NoError(db.Create(&models.Barber{ID: "barber-1", DisplayName: "Ada", Status: models.BarberAvailable, AvgRating: 4.9}).Error)
	s.Require().NoError(db.Create(&models.Barber{ID: "barber-2", DisplayName: "Bo", Status: models.BarberAvailable, AvgRating: 4.2}).Error)
	s.Require().NoError(db.Create(&models.Service{ID: "svc-cut", Name: "Cut", DurationMin: 30, PriceCents: 2500, Active: true}).Error)

	query := &engine.Query{
		Repo:   repository.New(db),
		Policy: testPolicy(),
		Clock:  engine.FixedClock{At: time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)},
	}

	log := logger.New("error")
	availabilityHandler := handlers.NewAvailabilityHandler(query, log)
	router := gin.New()
	router.GET("/api/v1/slots", availabilityHandler.Slots)
	router.GET("/api/v1/alternatives", availabilityHandler.Alternatives)
	s.Router = router
}

func (s *AvailabilityHandlerTestSuite) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

func (s *AvailabilityHandlerTestSuite) TestSlots_ReturnsUnifiedTimeline() {
	rec := s.get("/api/v1/slots?barber_id=barber-1&service_date=2026-08-03&service_ids=svc-cut")
	s.Require().Equal(http.StatusOK, rec.Code)

	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	slots, ok := body["slots"].([]any)
	s.Require().True(ok)
	assert.NotEmpty(s.T(), slots)
}

func (s *AvailabilityHandlerTestSuite) TestSlots_MissingParamsIsBadRequest() {
	rec := s.get("/api/v1/slots?barber_id=barber-1")
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *AvailabilityHandlerTestSuite) TestSlots_UnknownBarber() {
	rec := s.get("/api/v1/slots?barber_id=nope&service_date=2026-08-03&service_ids=svc-cut")
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
}

func (s *AvailabilityHandlerTestSuite) TestAlternatives_ExcludesRequestedBarber() {
	rec := s.get("/api/v1/alternatives?service_date=2026-08-03&service_ids=svc-cut&exclude_barber_id=barber-1")
	s.Require().Equal(http.StatusOK, rec.Code)

	var body struct {
		Barbers []struct {
			BarberID string `json:"barber_id"`
		} `json:"barbers"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	for _, b := range body.Barbers {
		assert.NotEqual(s.T(), "barber-1", b.BarberID)
	}
	assert.NotEmpty(s.T(), body.Barbers)
}

func TestAvailabilityHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(AvailabilityHandlerTestSuite))
}
