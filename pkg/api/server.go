// Package api provides the REST API server for neuralnotes
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/james-see/neuralnotes/pkg/config"
	"github.com/james-see/neuralnotes/pkg/corpus"
	"github.com/james-see/neuralnotes/pkg/pianoroll"
	"github.com/james-see/neuralnotes/pkg/session"
)

// @title NeuralNotes API
// @version 1.0
// @description API for training a restricted Boltzmann machine on MIDI files and sampling new ones
// @host localhost:8080
// @BasePath /api/v1

// Server exposes one session over HTTP
type Server struct {
	session *session.Session
}

// NewServer creates a server for s
func NewServer(s *session.Session) *Server {
	return &Server{session: s}
}

// StatusResponse describes the session
type StatusResponse struct {
	State          string `json:"state"`
	TrainStatus    string `json:"train_status"`
	GenerateStatus string `json:"generate_status"`
	CorpusSize     int    `json:"corpus_size"`
	CorpusDir      string `json:"corpus_dir"`
	CachedModel    bool   `json:"cached_model"`
}

// CorpusRequest names a directory of MIDI files
type CorpusRequest struct {
	Dir string `json:"dir" binding:"required"`
}

// TrainRequest optionally names an empty directory to save the model to
type TrainRequest struct {
	SaveDir string `json:"save_dir"`
}

// GenerateRequest optionally names the model and the output directory
type GenerateRequest struct {
	Model  string `json:"model"`
	OutDir string `json:"out_dir"`
}

// RollResponse is an encoded piano roll
type RollResponse struct {
	File      string      `json:"file"`
	Frames    int         `json:"frames"`
	LowBound  int         `json:"low_bound"`
	Notespan  int         `json:"notespan"`
	Truncated bool        `json:"truncated"`
	On        [][]float32 `json:"on"`
	Onset     [][]float32 `json:"onset"`
}

// Handler builds the gin engine
func (s *Server) Handler() http.Handler {
	r := gin.Default()

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/status", s.status)
		v1.GET("/config", s.getConfig)
		v1.PUT("/config", s.putConfig)
		v1.POST("/corpus", s.loadCorpus)
		v1.POST("/train", s.train)
		v1.POST("/generate", s.generate)
		v1.POST("/encode", s.encode)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// StartServer starts the API server on the specified port
func StartServer(port int, conf config.Config) error {
	s, err := session.New(conf)
	if err != nil {
		return err
	}
	addr := fmt.Sprintf(":%d", port)
	log.WithField("addr", addr).Info("starting API server")
	return http.ListenAndServe(addr, NewServer(s).Handler())
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// statusCode maps session errors to HTTP codes
func statusCode(err error) int {
	switch {
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrEmptyCorpus), errors.Is(err, session.ErrNoModel):
		return http.StatusPreconditionFailed
	case errors.Is(err, config.ErrInvalidField), errors.Is(err, corpus.ErrInvalidDirectory):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusCode(err), gin.H{"error": err.Error()})
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "neuralnotes",
	})
}

// status godoc
// @Summary Session status
// @Description Returns the lifecycle state and both status lines
// @Tags session
// @Produce json
// @Success 200 {object} StatusResponse
// @Router /api/v1/status [get]
func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		State:          s.session.State().String(),
		TrainStatus:    s.session.TrainStatus(),
		GenerateStatus: s.session.GenerateStatus(),
		CorpusSize:     s.session.CorpusSize(),
		CorpusDir:      s.session.CorpusDir(),
		CachedModel:    s.session.HasCachedModel(),
	})
}

// getConfig godoc
// @Summary Current settings
// @Tags config
// @Produce json
// @Success 200 {object} config.Config
// @Router /api/v1/config [get]
func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.Config())
}

// putConfig godoc
// @Summary Change settings
// @Description Takes a map of field name to text, e.g. {"timesteps": "32"}. Nothing is applied if any field is rejected.
// @Tags config
// @Accept json
// @Produce json
// @Param fields body map[string]string true "Fields to change"
// @Success 200 {object} config.Config
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/config [put]
func (s *Server) putConfig(c *gin.Context) {
	var fields map[config.Field]string
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	conf := s.session.Config()
	if err := conf.Apply(fields); err != nil {
		fail(c, err)
		return
	}
	if err := s.session.Configure(conf); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.session.Config())
}

// loadCorpus godoc
// @Summary Load training data
// @Description Loads every MIDI file in a directory on the server
// @Tags session
// @Accept json
// @Produce json
// @Param request body CorpusRequest true "Directory"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/corpus [post]
func (s *Server) loadCorpus(c *gin.Context) {
	var req CorpusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A directory is required"})
		return
	}

	n, err := s.session.LoadCorpus(c.Request.Context(), req.Dir)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"loaded": n,
		"status": s.session.TrainStatus(),
	})
}

// train godoc
// @Summary Train a model
// @Description Trains a new model on the loaded data and saves it to the model cache
// @Tags session
// @Accept json
// @Produce json
// @Param request body TrainRequest false "Save directory"
// @Success 200 {object} session.TrainReport
// @Failure 409 {object} map[string]string
// @Failure 412 {object} map[string]string
// @Router /api/v1/train [post]
func (s *Server) train(c *gin.Context) {
	var req TrainRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
			return
		}
	}

	report, err := s.session.Train(c.Request.Context(), session.TrainRequest{SaveDir: req.SaveDir})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// generate godoc
// @Summary Generate samples
// @Description Samples new MIDI files from a saved model into a directory on the server
// @Tags session
// @Accept json
// @Produce json
// @Param request body GenerateRequest false "Model and output directory"
// @Success 200 {object} session.GenerateReport
// @Failure 409 {object} map[string]string
// @Failure 412 {object} map[string]string
// @Router /api/v1/generate [post]
func (s *Server) generate(c *gin.Context) {
	var req GenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
			return
		}
	}

	report, err := s.session.Generate(c.Request.Context(), session.GenerateRequest{
		ModelPath: req.Model,
		OutDir:    req.OutDir,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// encode godoc
// @Summary Encode a MIDI file
// @Description Upload a MIDI file and receive its piano roll
// @Tags convert
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "MIDI file to encode"
// @Success 200 {object} RollResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/encode [post]
func (s *Server) encode(c *gin.Context) {
	// Get uploaded file
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer func() { _ = file.Close() }()

	// Read file content
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	if !pianoroll.IsMIDIData(data) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Not a MIDI file"})
		return
	}

	codec := s.session.Config().Codec()
	roll, err := codec.Encode(data)
	truncated := errors.Is(err, pianoroll.ErrUnsupportedMeter)
	if err != nil && !truncated {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	on, onset, err := codec.Split(roll)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, RollResponse{
		File:      header.Filename,
		Frames:    len(on),
		LowBound:  codec.LowBound,
		Notespan:  codec.Notespan(),
		Truncated: truncated,
		On:        on,
		Onset:     onset,
	})
}
