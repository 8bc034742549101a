// Package ipfs exposes the content store over HTTP.
package ipfs

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/paperchain/core/internal/pkg/ipfs"
	"github.com/paperchain/core/internal/pkg/response"
	"go.uber.org/zap"
)

const (
	maxUploadBytes   = 50 << 20
	maxMetadataBytes = 1 << 20
)

// UploadObserver is notified of every upload attempt.
type UploadObserver interface {
	Upload(kind string, err error)
}

// Handler serves upload, metadata pinning and existence checks.
type Handler struct {
	store    ipfs.Store
	observer UploadObserver
	logger   *zap.Logger
}

func NewHandler(store ipfs.Store, observer UploadObserver, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, observer: observer, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/ipfs")
	g.POST("/upload", h.upload)
	g.POST("/metadata", h.metadata)
	g.GET("/check/:cid", h.check)
}

// upload POST /ipfs/upload
func (h *Handler) upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		response.BadRequest(c, "file is too large")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if len(payload) > maxUploadBytes {
		response.BadRequest(c, "file is too large")
		return
	}

	cid, err := h.store.Upload(c.Request.Context(), fileHeader.Filename, payload)
	h.observe("file", err)
	if err != nil {
		h.logger.Warn("ipfs upload failed", zap.String("name", fileHeader.Filename), zap.Error(err))
		response.InternalErrorMsg(c, "Failed to upload file to IPFS", err)
		return
	}
	h.logger.Info("ipfs file pinned",
		zap.String("name", fileHeader.Filename),
		zap.Int("bytes", len(payload)),
		zap.String("cid", cid),
	)
	response.OK(c, gin.H{"cid": cid})
}

// metadata POST /ipfs/metadata
func (h *Handler) metadata(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxMetadataBytes))
	if err != nil {
		response.BadRequest(c, "metadata body is too large")
		return
	}
	var doc json.RawMessage
	if len(strings.TrimSpace(string(body))) == 0 || json.Unmarshal(body, &doc) != nil {
		response.BadRequest(c, "metadata must be a JSON document")
		return
	}

	cid, err := h.store.UploadJSON(c.Request.Context(), "metadata", doc)
	h.observe("metadata", err)
	if err != nil {
		h.logger.Warn("ipfs metadata upload failed", zap.Error(err))
		response.InternalErrorMsg(c, "Failed to upload metadata to IPFS", err)
		return
	}
	response.OK(c, gin.H{"cid": cid})
}

// check GET /ipfs/check/:cid
func (h *Handler) check(c *gin.Context) {
	cid := strings.TrimSpace(c.Param("cid"))
	if cid == "" {
		response.BadRequest(c, "cid is required")
		return
	}
	response.OK(c, gin.H{"exists": h.store.Exists(c.Request.Context(), cid)})
}

func (h *Handler) observe(kind string, err error) {
	if h.observer != nil {
		h.observer.Upload(kind, err)
	}
}
