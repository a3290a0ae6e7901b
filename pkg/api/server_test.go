package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/neuralnotes/internal/fixture"
	"github.com/james-see/neuralnotes/pkg/config"
	"github.com/james-see/neuralnotes/pkg/corpus"
	"github.com/james-see/neuralnotes/pkg/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(t *testing.T) (http.Handler, *session.Session) {
	root := t.TempDir()
	conf := config.Default()
	conf.Timesteps = 15
	conf.HiddenNodes = 8
	conf.Epochs = 1
	conf.MinLength = 32
	conf.MaxLength = -1
	conf.SampleCount = 2
	conf.Seed = 11
	conf.ModelCacheDir = filepath.Join(root, "cache")
	conf.SampleDir = filepath.Join(root, "samples")

	s, err := session.New(conf)
	require.NoError(t, err)
	return NewServer(s).Handler(), s
}

func song(t *testing.T) []byte {
	return fixture.SMF(t, 480, fixture.Notes(
		fixture.Note{Key: 60, On: 0, Off: 4680},
		fixture.Note{Key: 64, On: 480, Off: 1440},
	))
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func upload(t *testing.T, h http.Handler, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/encode", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h, _ := newServer(t)
	for _, path := range []string{"/health", "/api/v1/health"} {
		code, out := do(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", out["status"])
	}
}

func TestStatus(t *testing.T) {
	h, _ := newServer(t)
	code, out := do(t, h, http.MethodGet, "/api/v1/status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "configured", out["state"])
	assert.Equal(t, session.StatusNoData, out["train_status"])
	assert.Equal(t, session.StatusNoModel, out["generate_status"])
	assert.Equal(t, false, out["cached_model"])
}

func TestConfig(t *testing.T) {
	h, s := newServer(t)

	code, out := do(t, h, http.MethodGet, "/api/v1/config", "")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 15, out["timesteps"])

	code, out = do(t, h, http.MethodPut, "/api/v1/config", `{"timesteps": "20", "learn-rate": "0.1"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 20, out["timesteps"])
	assert.Equal(t, 20, s.Config().Timesteps)
	assert.InDelta(t, 0.1, s.Config().LearnRate, 1e-9)

	tests := []string{
		`{"epochs": "many"}`,
		`{"epochs": "0"}`,
		`{"volume": "11"}`,
		`not json`,
	}
	for _, body := range tests {
		code, out = do(t, h, http.MethodPut, "/api/v1/config", body)
		assert.Equal(t, http.StatusBadRequest, code, body)
		assert.NotEmpty(t, out["error"], body)
	}
	assert.Equal(t, 1, s.Config().Epochs)
}

func TestConfigPitchWindow(t *testing.T) {
	h, s := newServer(t)

	// both orders of a map must land on the same window
	for i := 0; i < 10; i++ {
		code, out := do(t, h, http.MethodPut, "/api/v1/config", `{"low-bound": "20", "high-bound": "30"}`)
		require.Equal(t, http.StatusOK, code, out["error"])
		assert.EqualValues(t, 20, out["lowBound"])
		assert.EqualValues(t, 30, out["highBound"])

		code, out = do(t, h, http.MethodPut, "/api/v1/config", `{"low-bound": "36", "high-bound": "85"}`)
		require.Equal(t, http.StatusOK, code, out["error"])
	}
	assert.Equal(t, 36, s.Config().LowBound)
	assert.Equal(t, 85, s.Config().HighBound)
}

func TestPreconditions(t *testing.T) {
	h, s := newServer(t)

	code, _ := do(t, h, http.MethodPost, "/api/v1/train", "")
	assert.Equal(t, http.StatusPreconditionFailed, code)

	code, _ = do(t, h, http.MethodPost, "/api/v1/generate", "")
	assert.Equal(t, http.StatusPreconditionFailed, code)
	assert.Equal(t, session.StatusGenerateFailed, s.GenerateStatus())

	code, _ = do(t, h, http.MethodPost, "/api/v1/corpus", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	missing := filepath.Join(t.TempDir(), "missing")
	code, _ = do(t, h, http.MethodPost, "/api/v1/corpus", fmt.Sprintf(`{"dir": %q}`, missing))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, session.StatusLoadFailed, s.TrainStatus())
}

func TestTrainAndGenerate(t *testing.T) {
	h, s := newServer(t)
	dir := t.TempDir()
	fixture.Write(t, dir, "a.mid", song(t))

	code, out := do(t, h, http.MethodPost, "/api/v1/corpus", fmt.Sprintf(`{"dir": %q}`, dir))
	require.Equal(t, http.StatusOK, code, out)
	assert.EqualValues(t, 1, out["loaded"])
	assert.Equal(t, session.StatusLoaded, out["status"])

	saveDir := t.TempDir()
	code, out = do(t, h, http.MethodPost, "/api/v1/train", fmt.Sprintf(`{"save_dir": %q}`, saveDir))
	require.Equal(t, http.StatusOK, code, out)
	assert.EqualValues(t, 2, out["windows"])
	assert.Len(t, out["saved"], 2)
	assert.True(t, s.HasCachedModel())

	outDir := t.TempDir()
	code, out = do(t, h, http.MethodPost, "/api/v1/generate", fmt.Sprintf(`{"out_dir": %q}`, outDir))
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, outDir, out["dir"])

	code, out = do(t, h, http.MethodGet, "/api/v1/status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "generated", out["state"])
	assert.Equal(t, session.StatusGenerated, out["generate_status"])
}

func TestEncode(t *testing.T) {
	h, _ := newServer(t)

	w := upload(t, h, "song.mid", song(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var roll RollResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &roll))
	assert.Equal(t, "song.mid", roll.File)
	assert.Equal(t, 40, roll.Frames)
	assert.Equal(t, 49, roll.Notespan)
	assert.False(t, roll.Truncated)
	require.Len(t, roll.On, 40)
	assert.Equal(t, float32(1), roll.On[0][60-36])
	assert.Equal(t, float32(1), roll.Onset[0][60-36])
	assert.Equal(t, float32(0), roll.Onset[1][60-36])

	w = upload(t, h, "notes.txt", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/encode", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{session.ErrBusy, http.StatusConflict},
		{session.ErrEmptyCorpus, http.StatusPreconditionFailed},
		{fmt.Errorf("load: %w", session.ErrNoModel), http.StatusPreconditionFailed},
		{config.ErrInvalidField, http.StatusBadRequest},
		{corpus.ErrInvalidDirectory, http.StatusBadRequest},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCode(tt.err), tt.err.Error())
	}
}
