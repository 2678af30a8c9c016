package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/postmesh/internal/media/application"
	mediaDomain "github.com/davicafu/postmesh/internal/media/domain"
	sharedHTTP "github.com/davicafu/postmesh/internal/shared/infra/inbound/http"
	"github.com/davicafu/postmesh/pkg/utils"
)

// Margen para las cabeceras multipart por encima del tamaño del fichero.
const multipartOverhead = 1 << 20

type MediaHandler struct {
	service *application.MediaService
	log     *zap.Logger
}

func NewMediaHandler(service *application.MediaService, log *zap.Logger) *MediaHandler {
	return &MediaHandler{service: service, log: log}
}

// UploadMedia endpoint POST /api/media/upload (multipart, campo "file")
func (h *MediaHandler) UploadMedia(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, mediaDomain.MaxUploadSize+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			utils.SendBadRequest(c, "File too large")
			return
		}
		h.log.Warn("No file found to upload", zap.Error(err))
		utils.SendBadRequest(c, "No file found to upload, please add a file and try again!")
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.log.Error("Could not open uploaded file", zap.Error(err))
		utils.SendInternalServerError(c, "Error creating media")
		return
	}
	defer f.Close()

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	media, err := h.service.Upload(c.Request.Context(), sharedHTTP.UserID(c), fh.Filename, mimeType, fh.Size, f)
	if err != nil {
		switch {
		case errors.Is(err, mediaDomain.ErrFileTooLarge):
			utils.SendBadRequest(c, "File too large")
		case errors.Is(err, mediaDomain.ErrNoFile):
			utils.SendBadRequest(c, "No file found to upload, please add a file and try again!")
		default:
			utils.SendInternalServerError(c, "Error creating media")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"mediaId": media.ID,
		"url":     media.URL,
		"message": "Media upload is successful",
	})
}

// GetAllMedias endpoint GET /api/media/get: ficheros del usuario autenticado.
func (h *MediaHandler) GetAllMedias(c *gin.Context) {
	medias, err := h.service.ListMedia(c.Request.Context(), sharedHTTP.UserID(c))
	if err != nil {
		utils.SendInternalServerError(c, "Error fetching all media")
		return
	}
	utils.SendSuccess(c, http.StatusOK, medias)
}

func RegisterMediaRoutes(r gin.IRouter, handler *MediaHandler, log *zap.Logger) {
	media := r.Group("/api/media", sharedHTTP.RequireUser(log))
	{
		media.POST("/upload", handler.UploadMedia)
		media.GET("/get", handler.GetAllMedias)
	}
}
