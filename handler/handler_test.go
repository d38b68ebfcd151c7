package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TIANLI0/PopCut/config"
	"github.com/TIANLI0/PopCut/model"
	"github.com/TIANLI0/PopCut/service"
	"github.com/TIANLI0/PopCut/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	cfg    *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.GrabCut.Engine = config.EngineRect
	cfg.Storage.OutputDir = t.TempDir()

	seg, err := service.NewSegmenter(cfg.GrabCut.Engine)
	require.NoError(t, err)
	store := service.NewResultStore(cfg.Storage.OutputDir)

	r := gin.New()
	RegisterRoutes(r,
		NewGrabCutHandler(cfg, service.NewGrabCutService(cfg, seg, nil), store),
		NewBWConverterHandler(cfg, service.NewConverterService(&cfg.Upload), store),
		store)
	return &testServer{router: r, cfg: cfg}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(3 * x), G: uint8(2 * y), B: 90, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func multipartBody(t *testing.T, data []byte, contentType string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="test.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestProcess_JSON(t *testing.T) {
	s := newTestServer(t)
	w := s.postJSON(t, "/api/v1/grabcut/process", model.ProcessRequest{
		Image: utils.EncodeDataURL("image/png", testPNG(t, 100, 100)),
		Rect:  &model.Rect{X: 10, Y: 10, Width: 50, Height: 50},
		Style: "grayscale-background",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeBody[model.ProcessResponse](t, w)
	require.True(t, resp.Success)
	require.False(t, resp.Cached)
	require.NotNil(t, resp.Data)
	require.Equal(t, "grayscale-background", resp.Data.Style)
	require.Equal(t, model.BBox{X: 10, Y: 10, Width: 50, Height: 50}, resp.Data.BoundingBox)
	require.True(t, strings.HasPrefix(resp.Data.ResultImage, "data:image/png;base64,"))
}

func TestProcess_LegacyResultType(t *testing.T) {
	s := newTestServer(t)
	w := s.postJSON(t, "/api/v1/grabcut/process", model.ProcessRequest{
		Image:      utils.EncodeDataURL("image/png", testPNG(t, 20, 20)),
		Rect:       &model.Rect{X: 2, Y: 2, Width: 10, Height: 10},
		ResultType: "bw",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "grayscale-background", decodeBody[model.ProcessResponse](t, w).Data.Style)
}

func TestProcess_Multipart(t *testing.T) {
	s := newTestServer(t)
	body, contentType := multipartBody(t, testPNG(t, 40, 30), "image/png", map[string]string{
		"x": "5", "y": "5", "width": "20", "height": "10", "iterations": "3",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/grabcut/process", body)
	req.Header.Set("Content-Type", contentType)

	w := s.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[model.ProcessResponse](t, w)
	require.Equal(t, "cutout", resp.Data.Style)
	require.Equal(t, 3, resp.Data.Iterations)
	require.Equal(t, model.Rect{X: 5, Y: 5, Width: 20, Height: 10}, resp.Data.Rect)
}

func TestProcess_MultipartRejects(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartBody(t, testPNG(t, 10, 10), "text/plain", map[string]string{
		"x": "0", "y": "0", "width": "5", "height": "5",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/grabcut/process", body)
	req.Header.Set("Content-Type", contentType)
	require.Equal(t, http.StatusBadRequest, s.do(req).Code)

	body, contentType = multipartBody(t, testPNG(t, 10, 10), "image/png", map[string]string{
		"x": "0", "y": "0", "width": "5",
	})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/grabcut/process", body)
	req.Header.Set("Content-Type", contentType)
	w := s.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "height")
}

func TestProcess_Errors(t *testing.T) {
	s := newTestServer(t)
	img := utils.EncodeDataURL("image/png", testPNG(t, 20, 20))

	tests := []struct {
		name   string
		body   model.ProcessRequest
		status int
		kind   service.ErrorKind
	}{
		{"missing rect", model.ProcessRequest{Image: img}, http.StatusBadRequest, ""},
		{"bad base64", model.ProcessRequest{Image: "!!!", Rect: &model.Rect{Width: 1, Height: 1}}, http.StatusBadRequest, service.KindDecode},
		{"not an image", model.ProcessRequest{Image: utils.EncodeDataURL("image/png", []byte("nope")), Rect: &model.Rect{Width: 1, Height: 1}}, http.StatusBadRequest, service.KindDecode},
		{"rect out of bounds", model.ProcessRequest{Image: img, Rect: &model.Rect{X: 15, Y: 0, Width: 10, Height: 5}}, http.StatusBadRequest, service.KindRect},
		{"unknown style", model.ProcessRequest{Image: img, Rect: &model.Rect{Width: 5, Height: 5}, Style: "sepia"}, http.StatusBadRequest, service.KindUnknownMethod},
		{"too many iterations", model.ProcessRequest{Image: img, Rect: &model.Rect{Width: 5, Height: 5}, Iterations: 100}, http.StatusUnprocessableEntity, service.KindSegmentation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.postJSON(t, "/api/v1/grabcut/process", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			resp := decodeBody[model.ErrorResponse](t, w)
			require.False(t, resp.Success)
			require.Equal(t, string(tt.kind), resp.Kind)
			require.NotEmpty(t, resp.Message)
		})
	}
}

func TestProcess_MalformedJSON(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/grabcut/process", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusBadRequest, s.do(req).Code)
}

func TestGetResult_NotFound(t *testing.T) {
	s := newTestServer(t)
	w := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/grabcut/result/abc", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSave_Cutout(t *testing.T) {
	s := newTestServer(t)
	data := testPNG(t, 4, 4)
	w := s.postJSON(t, "/api/v1/grabcut/save", model.SaveCutoutRequest{
		ResultImage: utils.EncodeDataURL("image/png", data),
		MaskImage:   utils.EncodeDataURL("image/png", data),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeBody[model.SaveCutoutResponse](t, w)
	require.True(t, strings.HasPrefix(resp.ResultPath, "/results/grabcut/result_"))
	require.True(t, strings.HasPrefix(resp.MaskPath, "/results/grabcut/mask_"))

	onDisk, err := os.ReadFile(filepath.Join(s.cfg.Storage.OutputDir, strings.TrimPrefix(resp.ResultPath, "/results")))
	require.NoError(t, err)
	require.Equal(t, data, onDisk)

	// 静态目录可以直接访问
	served := s.do(httptest.NewRequest(http.MethodGet, resp.MaskPath, nil))
	require.Equal(t, http.StatusOK, served.Code)
	require.Equal(t, data, served.Body.Bytes())
}

func TestSave_CutoutRejects(t *testing.T) {
	s := newTestServer(t)

	w := s.postJSON(t, "/api/v1/grabcut/save", model.SaveCutoutRequest{ResultImage: "abc"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.postJSON(t, "/api/v1/grabcut/save", model.SaveCutoutRequest{
		ResultImage: utils.EncodeDataURL("image/png", []byte("not a png at all")),
		MaskImage:   utils.EncodeDataURL("image/png", testPNG(t, 2, 2)),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBWConvert(t *testing.T) {
	s := newTestServer(t)
	for _, m := range service.Methods() {
		w := s.postJSON(t, "/api/v1/bw/convert", model.ConvertRequest{
			Image:  utils.EncodeDataURL("image/png", testPNG(t, 8, 8)),
			Method: m.String(),
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decodeBody[model.ConvertResponse](t, w)
		require.True(t, resp.Success)
		require.Equal(t, m.String(), resp.Method)

		data, _, err := utils.DecodeDataURL(resp.ResultImage)
		require.NoError(t, err)
		gray, err := service.DecodeGray(data)
		require.NoError(t, err)
		require.Equal(t, 8, gray.Bounds().Dx())
	}
}

func TestBWConvert_Errors(t *testing.T) {
	s := newTestServer(t)

	w := s.postJSON(t, "/api/v1/bw/convert", model.ConvertRequest{
		Image:  utils.EncodeDataURL("image/png", testPNG(t, 2, 2)),
		Method: "sepia",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, string(service.KindUnknownMethod), decodeBody[model.ErrorResponse](t, w).Kind)

	w = s.postJSON(t, "/api/v1/bw/convert", model.ConvertRequest{Method: "luma"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBWSave(t *testing.T) {
	s := newTestServer(t)
	data := testPNG(t, 3, 3)

	w := s.postJSON(t, "/api/v1/bw/save", model.SaveConvertRequest{
		ResultImage: utils.EncodeDataURL("image/png", data),
		Method:      "green_channel",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[model.SaveConvertResponse](t, w)
	require.True(t, strings.HasPrefix(resp.ResultPath, "/results/bw_converter/bw_green-channel_"))

	w = s.postJSON(t, "/api/v1/bw/save", model.SaveConvertRequest{ResultImage: utils.EncodeDataURL("image/png", data)})
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.HasPrefix(decodeBody[model.SaveConvertResponse](t, w).ResultPath, "/results/bw_converter/bw_custom_"))
}

func TestOversizedBody(t *testing.T) {
	s := newTestServer(t)
	s.cfg.Upload.MaxSize = 1024
	big := `{"image":"` + strings.Repeat("A", bodyOverhead+4096) + `","method":"luma","result_image":"x","mask_image":"x"}`

	for _, path := range []string{"/api/v1/grabcut/process", "/api/v1/grabcut/save", "/api/v1/bw/convert", "/api/v1/bw/save"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(big))
			req.Header.Set("Content-Type", "application/json")

			w := s.do(req)
			require.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
			require.Equal(t, "文件大小超过限制", decodeBody[model.ErrorResponse](t, w).Message)
		})
	}
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusServiceUnavailable, statusFor(service.ErrQueueFull))
	require.Equal(t, http.StatusRequestEntityTooLarge, statusFor(&http.MaxBytesError{Limit: 1}))
	require.Equal(t, http.StatusRequestEntityTooLarge, statusFor(fmt.Errorf("%w: %w", errBadRequest, &http.MaxBytesError{Limit: 1})))
	require.Equal(t, http.StatusInternalServerError, statusFor(os.ErrPermission))
}
