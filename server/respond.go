package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"Cutline/core/preview"
	"Cutline/logger"
	"Cutline/model"
)

// errBadRequest 请求体或参数无法解析
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// errorKind 返回错误分类名，客户端据此区分冲突和参数错误
func errorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrOverlap):
		return "overlap"
	case errors.Is(err, model.ErrTrackLocked):
		return "trackLocked"
	case errors.Is(err, model.ErrInvalidRange):
		return "invalidRange"
	case errors.Is(err, model.ErrNotFound):
		return "notFound"
	case errors.Is(err, model.ErrPreviewFailed):
		return "previewFailed"
	case errors.Is(err, errBadRequest):
		return "badRequest"
	case errors.Is(err, preview.ErrClosed):
		return "closed"
	}
	return "internal"
}

// statusFor 把编辑错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch errorKind(err) {
	case "overlap", "trackLocked":
		return http.StatusConflict
	case "invalidRange":
		return http.StatusUnprocessableEntity
	case "notFound":
		return http.StatusNotFound
	case "badRequest":
		return http.StatusBadRequest
	case "previewFailed":
		return http.StatusBadGateway
	case "closed":
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", logger.ErrorField(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: errorKind(err)})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}
