package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/foliobase/foliobase/internal/storage"
	"github.com/foliobase/foliobase/pkg/apperr"
)

// StorageHandler handles bucket-scoped object storage endpoints.
type StorageHandler struct {
	client *storage.Client
}

// NewStorageHandler creates a StorageHandler.
func NewStorageHandler(client *storage.Client) *StorageHandler {
	return &StorageHandler{client: client}
}

// safeKey returns the object key from the path param and false if invalid.
func safeKey(pathParam string) (string, bool) {
	key := strings.TrimPrefix(strings.TrimSpace(pathParam), "/")
	if key == "" {
		return "", false
	}
	if strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}

func (h *StorageHandler) available(c *gin.Context) bool {
	if h.client == nil || !h.client.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage service not configured"})
		return false
	}
	return true
}

// Upload handles POST /v1/storage/:bucket, a multipart form with a "file"
// part and an optional "path" field (defaults to the filename).
func (h *StorageHandler) Upload(c *gin.Context) {
	if !h.available(c) {
		return
	}
	bucket := c.Param("bucket")

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart file field required"})
		return
	}
	// Declared size is checked before the object store is touched.
	if file.Size > h.client.MaxUploadBytes() {
		writeError(c, apperr.PayloadTooLarge("upload exceeds size limit"))
		return
	}
	key, ok := safeKey(c.PostForm("path"))
	if !ok {
		key, ok = safeKey(file.Filename)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid object path"})
			return
		}
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	defer src.Close()

	info, err := h.client.Upload(c.Request.Context(), bucket, key, src, file.Size, file.Header.Get("Content-Type"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

// Download handles GET /v1/storage/:bucket/*path (authenticated).
func (h *StorageHandler) Download(c *gin.Context) {
	if !h.available(c) {
		return
	}
	h.stream(c, c.Param("bucket"))
}

// PublicDownload handles GET /public/:bucket/*path without authentication
// for buckets on the public allow-list.
func (h *StorageHandler) PublicDownload(c *gin.Context) {
	if !h.available(c) {
		return
	}
	bucket := c.Param("bucket")
	if !h.client.IsPublicBucket(bucket) {
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
		return
	}
	h.stream(c, bucket)
}

func (h *StorageHandler) stream(c *gin.Context, bucket string) {
	key, ok := safeKey(c.Param("path"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing object path"})
		return
	}
	obj, err := h.client.Download(c.Request.Context(), bucket, key)
	if err != nil {
		writeError(c, err)
		return
	}
	defer obj.Reader.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	size := obj.Size
	if size < 0 {
		size = 0
	}
	c.DataFromReader(http.StatusOK, size, contentType, obj.Reader, nil)
}

// RemoveRequest is a batch of object paths to delete.
type RemoveRequest struct {
	Paths []string `json:"paths"`
}

// Remove handles DELETE /v1/storage/:bucket.
func (h *StorageHandler) Remove(c *gin.Context) {
	if !h.available(c) {
		return
	}
	var req RemoveRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Paths) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paths are required"})
		return
	}
	keys := make([]string, 0, len(req.Paths))
	for _, p := range req.Paths {
		key, ok := safeKey(p)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid object path"})
			return
		}
		keys = append(keys, key)
	}
	if err := h.client.Remove(c.Request.Context(), c.Param("bucket"), keys); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// List handles GET /v1/storage/:bucket?prefix=...
func (h *StorageHandler) List(c *gin.Context) {
	if !h.available(c) {
		return
	}
	objects, err := h.client.List(c.Request.Context(), c.Param("bucket"), c.Query("prefix"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"objects": objects})
}

// SignRequest asks for a time-limited URL for one object.
type SignRequest struct {
	Path string `json:"path"`
	// ExpiresIn is the TTL in seconds; defaults to one hour.
	ExpiresIn int `json:"expires_in"`
}

// SignedURL handles POST /v1/storage/:bucket/sign.
func (h *StorageHandler) SignedURL(c *gin.Context) {
	if !h.available(c) {
		return
	}
	var req SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	key, ok := safeKey(req.Path)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid object path"})
		return
	}
	ttl := time.Duration(req.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	url, err := h.client.SignedURL(c.Request.Context(), c.Param("bucket"), key, ttl)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signed_url": url})
}

// PublicURL handles GET /v1/storage/:bucket/public-url?path=... with pure
// URL construction, no I/O.
func (h *StorageHandler) PublicURL(c *gin.Context) {
	bucket := c.Param("bucket")
	key, ok := safeKey(c.Query("path"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid object path"})
		return
	}
	if h.client == nil || !h.client.IsPublicBucket(bucket) {
		c.JSON(http.StatusNotFound, gin.H{"error": "bucket is not public"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_url": h.client.PublicURL(bucket, key)})
}
