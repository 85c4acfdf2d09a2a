package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"Cutline/cache"
	"Cutline/core/engine"
	"Cutline/core/playback"
	"Cutline/logger"
	"Cutline/model"
	"Cutline/repository"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"
)

// maxWaitPreview 预览长轮询的最长等待时间
const maxWaitPreview = 2 * time.Minute

// errNoProjectStore 未配置任何工程存储
var errNoProjectStore = errors.New("no project store configured")

// APIHandler 编辑会话的 HTTP 处理器。projects 和 snapshots 都可以为空。
type APIHandler struct {
	engine    *engine.Engine
	hub       *Hub
	projects  repository.ProjectRepository
	snapshots *cache.SnapshotCache
}

// NewAPIHandler 创建处理器
func NewAPIHandler(e *engine.Engine, hub *Hub, projects repository.ProjectRepository, snapshots *cache.SnapshotCache) *APIHandler {
	return &APIHandler{engine: e, hub: hub, projects: projects, snapshots: snapshots}
}

// RegisterRoutes 注册全部路由
func (h *APIHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/snapshot", h.SnapshotHandler).Methods(http.MethodGet)
	api.HandleFunc("/commands", h.ListCommandsHandler).Methods(http.MethodGet)
	api.HandleFunc("/commands/{op}", h.CommandHandler).Methods(http.MethodPost)

	api.HandleFunc("/project", h.ExportHandler).Methods(http.MethodGet)
	api.HandleFunc("/project", h.ImportHandler).Methods(http.MethodPut)
	api.HandleFunc("/project/reset", h.ResetHandler).Methods(http.MethodPost)
	api.HandleFunc("/project/save", h.SaveHandler).Methods(http.MethodPost)

	api.HandleFunc("/projects", h.ListProjectsHandler).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/load", h.LoadProjectHandler).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}", h.DeleteProjectHandler).Methods(http.MethodDelete)

	api.HandleFunc("/clips/{id}/previews", h.PreviewsHandler).Methods(http.MethodGet)
	api.HandleFunc("/clips/{id}/previews/{kind}", h.PreviewHandler).Methods(http.MethodGet)
	api.HandleFunc("/clips/{id}/keyframes", h.KeyframesHandler).Methods(http.MethodGet)
	api.HandleFunc("/clips/{id}/sample", h.SampleHandler).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{id}/gain", h.EffectiveGainHandler).Methods(http.MethodGet)

	api.HandleFunc("/time/format", h.FormatTimeHandler).Methods(http.MethodGet)
	api.HandleFunc("/autoscroll", h.AutoScrollHandler).Methods(http.MethodPost)

	router.HandleFunc("/ws", h.WebSocketHandler)
}

// SnapshotHandler 返回当前快照
func (h *APIHandler) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Snapshot())
}

// ListCommandsHandler 列出可用命令
func (h *APIHandler) ListCommandsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CommandNames())
}

// CommandHandler 执行一条编辑命令，请求体为命令参数
func (h *APIHandler) CommandHandler(w http.ResponseWriter, r *http.Request) {
	op := mux.Vars(r)["op"]
	args, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
	if err != nil {
		writeError(w, badRequest("failed to read body: %v", err))
		return
	}
	result, err := Execute(r.Context(), h.engine, op, args)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func wantsYAML(r *http.Request) bool {
	if f := r.URL.Query().Get("format"); f != "" {
		return f == "yaml" || f == "yml"
	}
	ct := r.Header.Get("Content-Type")
	if r.Method == http.MethodGet {
		ct = r.Header.Get("Accept")
	}
	return strings.Contains(ct, "yaml")
}

// ExportHandler 导出工程，?format=yaml 时输出 YAML
func (h *APIHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	p := h.engine.Export()
	if !wantsYAML(r) {
		writeJSON(w, http.StatusOK, p)
		return
	}
	out, err := yaml.Marshal(p)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(out)
}

// ImportHandler 用请求体中的工程替换当前状态，支持 JSON 和 YAML
func (h *APIHandler) ImportHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<20))
	if err != nil {
		writeError(w, badRequest("failed to read body: %v", err))
		return
	}
	var p model.Project
	if wantsYAML(r) {
		err = yaml.Unmarshal(body, &p)
	} else {
		err = json.Unmarshal(body, &p)
	}
	if err != nil {
		writeError(w, badRequest("invalid project document: %v", err))
		return
	}
	snap, err := h.engine.Restore(p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ResetHandler 新建空工程
func (h *APIHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Reset(req.Name))
}

// SaveResponse 保存结果
type SaveResponse struct {
	ID            string `json:"id"`
	Revision      int64  `json:"revision,omitempty"`
	CacheRevision int64  `json:"cacheRevision,omitempty"`
}

// SaveHandler 把当前工程写入 Redis 快照缓存和数据库
func (h *APIHandler) SaveHandler(w http.ResponseWriter, r *http.Request) {
	if h.projects == nil && h.snapshots == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: errNoProjectStore.Error(), Kind: "unavailable"})
		return
	}
	ctx := r.Context()
	p := h.engine.Export()
	resp := SaveResponse{ID: p.ID}

	if h.snapshots != nil {
		rev, err := h.snapshots.Save(ctx, p)
		if err != nil {
			// 数据库仍可用时只记录警告
			logger.Warn("failed to cache project snapshot", logger.String("projectId", p.ID), logger.ErrorField(err))
			if h.projects == nil {
				writeError(w, err)
				return
			}
		}
		resp.CacheRevision = rev
	}
	if h.projects != nil {
		rev, err := h.projects.Save(ctx, p)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.Revision = rev
	}
	logger.Info("project saved",
		logger.String("projectId", p.ID),
		logger.Int64("revision", resp.Revision),
		logger.Int64("cacheRevision", resp.CacheRevision))
	writeJSON(w, http.StatusOK, resp)
}

// loadProject 优先读 Redis 快照，未命中时读数据库
func (h *APIHandler) loadProject(ctx context.Context, id string) (*model.Project, error) {
	if h.snapshots != nil {
		p, err := h.snapshots.Load(ctx, id)
		if err != nil {
			logger.Warn("failed to read cached snapshot", logger.String("projectId", id), logger.ErrorField(err))
		} else if p != nil {
			return p, nil
		}
	}
	if h.projects != nil {
		p, _, err := h.projects.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}
	return nil, model.NewEditError("loadProject", model.ErrNotFound, id, "")
}

// LoadProjectHandler 加载已保存的工程替换当前状态
func (h *APIHandler) LoadProjectHandler(w http.ResponseWriter, r *http.Request) {
	if h.projects == nil && h.snapshots == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: errNoProjectStore.Error(), Kind: "unavailable"})
		return
	}
	p, err := h.loadProject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := h.engine.Restore(*p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ListProjectsHandler 列出已保存的工程
func (h *APIHandler) ListProjectsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	switch {
	case h.projects != nil:
		list, err := h.projects.List(ctx, limit, offset)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case h.snapshots != nil:
		ids, err := h.snapshots.Recent(ctx, int64(limit))
		if err != nil {
			writeError(w, err)
			return
		}
		list := make([]repository.ProjectSummary, 0, len(ids))
		for _, id := range ids {
			list = append(list, repository.ProjectSummary{ID: id})
		}
		writeJSON(w, http.StatusOK, list)
	default:
		writeJSON(w, http.StatusOK, []repository.ProjectSummary{})
	}
}

// DeleteProjectHandler 删除已保存的工程
func (h *APIHandler) DeleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]
	if h.snapshots != nil {
		if err := h.snapshots.Delete(ctx, id); err != nil {
			writeError(w, err)
			return
		}
	}
	if h.projects != nil {
		if err := h.projects.Delete(ctx, id); err != nil {
			writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// PreviewsHandler 返回片段的全部预览条目
func (h *APIHandler) PreviewsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Previews(mux.Vars(r)["id"]))
}

// PreviewHandler 返回单个预览条目。?wait=30s 时等待生成结束。
func (h *APIHandler) PreviewHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	clipID := vars["id"]
	kind := model.PreviewKind(vars["kind"])
	if !kind.Valid() {
		writeError(w, badRequest("unknown preview kind %q", kind))
		return
	}

	wait := r.URL.Query().Get("wait")
	if wait == "" {
		asset, ok := h.engine.Preview(clipID, kind)
		if !ok {
			writeError(w, model.NewEditError("preview", model.ErrNotFound, clipID, "no %s preview", kind))
			return
		}
		writeJSON(w, http.StatusOK, asset)
		return
	}

	timeout, err := time.ParseDuration(wait)
	if err != nil || timeout <= 0 {
		writeError(w, badRequest("invalid wait duration %q", wait))
		return
	}
	if timeout > maxWaitPreview {
		timeout = maxWaitPreview
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	asset, err := h.engine.WaitPreview(ctx, clipID, kind)
	if errors.Is(err, context.DeadlineExceeded) {
		// 超时返回当前的 pending 条目
		asset, _ = h.engine.Preview(clipID, kind)
		err = nil
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

// KeyframesHandler 列出片段的关键帧，?property= 过滤属性
func (h *APIHandler) KeyframesHandler(w http.ResponseWriter, r *http.Request) {
	prop := model.Property(r.URL.Query().Get("property"))
	writeJSON(w, http.StatusOK, h.engine.Keyframes(mux.Vars(r)["id"], prop))
}

// SampleHandler 在时间线绝对时间 t 处采样片段属性
func (h *APIHandler) SampleHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t, err := strconv.ParseFloat(q.Get("t"), 64)
	if err != nil {
		writeError(w, badRequest("invalid time %q", q.Get("t")))
		return
	}
	value, ok := h.engine.SampleAt(mux.Vars(r)["id"], model.Property(q.Get("property")), t)
	writeJSON(w, http.StatusOK, map[string]any{"value": value, "ok": ok})
}

// EffectiveGainHandler 返回轨道经过静音和总线后的实际增益
func (h *APIHandler) EffectiveGainHandler(w http.ResponseWriter, r *http.Request) {
	gain, err := h.engine.EffectiveGain(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"gain": gain})
}

// FormatTimeHandler 把秒数格式化为 mm:ss:ff
func (h *APIHandler) FormatTimeHandler(w http.ResponseWriter, r *http.Request) {
	t, err := strconv.ParseFloat(r.URL.Query().Get("t"), 64)
	if err != nil {
		writeError(w, badRequest("invalid time %q", r.URL.Query().Get("t")))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": h.engine.FormatTime(t)})
}

// AutoScrollHandler 根据可视窗口给出滚动建议
func (h *APIHandler) AutoScrollHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScrollLeft float64 `json:"scrollLeft"`
		Width      float64 `json:"width"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	left, scroll := h.engine.AutoScroll(playback.Viewport{ScrollLeft: req.ScrollLeft, Width: req.Width})
	writeJSON(w, http.StatusOK, map[string]any{"scrollLeft": left, "scroll": scroll})
}
