package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/saeedalam/stackforge/internal/apperr"
	"github.com/saeedalam/stackforge/internal/archive"
	"github.com/saeedalam/stackforge/internal/blueprint"
	"github.com/saeedalam/stackforge/pkg/types"
)

type generateRequest struct {
	ProjectName string `json:"projectName"`
	Stack       string `json:"stack"`
	// NoSave skips recording the result in history
	NoSave bool `json:"noSave,omitempty"`
}

type enhanceRequest struct {
	ProjectName  string             `json:"projectName"`
	Files        []types.FileRecord `json:"files"`
	Instructions string             `json:"instructions"`
	NoSave       bool               `json:"noSave,omitempty"`
}

type blueprintResponse struct {
	Blueprint *types.Blueprint `json:"blueprint"`
	HistoryID string           `json:"historyId,omitempty"`
}

type encodeRequest struct {
	ProjectName string             `json:"projectName"`
	Files       []types.FileRecord `json:"files"`
}

type decodeResponse struct {
	ProjectName string                 `json:"projectName"`
	Files       []types.FileRecord     `json:"files"`
	Skipped     []archive.SkippedEntry `json:"skipped"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{Status: "ok", Version: s.deps.Version})
}

// settings returns the stored settings seeded with configured credentials
func (s *Server) settings() (types.Settings, error) {
	stored, err := s.deps.Store.Settings()
	if err != nil {
		return types.Settings{}, err
	}
	return s.deps.Seed(stored), nil
}

func (s *Server) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: %v", err)
		return
	}
	req.ProjectName = strings.TrimSpace(req.ProjectName)
	if req.ProjectName == "" {
		badRequest(c, "projectName is required")
		return
	}

	settings, err := s.settings()
	if err != nil {
		writeError(c, err)
		return
	}
	stack := req.Stack
	if strings.TrimSpace(stack) == "" {
		stack = settings.DefaultStack
	}

	bp, err := s.deps.Generator.Generate(c.Request.Context(), req.ProjectName, stack, settings)
	if err != nil {
		writeError(c, err)
		return
	}
	s.respondBlueprint(c, bp, req.NoSave)
}

func (s *Server) enhance(c *gin.Context) {
	var req enhanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: %v", err)
		return
	}
	req.ProjectName = strings.TrimSpace(req.ProjectName)
	if req.ProjectName == "" {
		badRequest(c, "projectName is required")
		return
	}
	if len(req.Files) == 0 {
		badRequest(c, "files are required")
		return
	}

	settings, err := s.settings()
	if err != nil {
		writeError(c, err)
		return
	}

	bp, err := s.deps.Generator.Enhance(c.Request.Context(), req.Files, req.Instructions, req.ProjectName, settings)
	if err != nil {
		writeError(c, err)
		return
	}
	s.respondBlueprint(c, bp, req.NoSave)
}

func (s *Server) respondBlueprint(c *gin.Context, bp *types.Blueprint, noSave bool) {
	resp := blueprintResponse{Blueprint: bp}
	if !noSave {
		item, err := s.deps.Store.AddHistory(bp.ProjectName, bp)
		if err != nil {
			// The blueprint is still returned; only the history entry is lost.
			s.log.Warn("failed to record history", "project", bp.ProjectName, "error", err)
		} else {
			resp.HistoryID = item.ID
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) encodeArchive(c *gin.Context) {
	var req encodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: %v", err)
		return
	}
	name := strings.TrimSpace(req.ProjectName)
	if name == "" {
		name = "project"
	}

	bundle, err := archive.Encode(name, req.Files)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", bundle.Name))
	c.Data(http.StatusOK, "application/zip", bundle.Data)
}

func (s *Server) decodeArchive(c *gin.Context) {
	if s.cfg.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "multipart field \"file\" is required: %v", err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, apperr.Wrap(err, apperr.KindArchiveOpen, "cannot read upload"))
		return
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, f); err != nil {
		writeError(c, apperr.Wrap(err, apperr.KindArchiveOpen, "cannot read upload"))
		return
	}

	res, err := s.deps.Decoder.DecodeBytes(c.Request.Context(), fh.Filename, buf.Bytes())
	if err != nil {
		writeError(c, err)
		return
	}

	resp := decodeResponse{ProjectName: res.ProjectName, Files: res.Files, Skipped: res.Skipped}
	if resp.Files == nil {
		resp.Files = []types.FileRecord{}
	}
	if resp.Skipped == nil {
		resp.Skipped = []archive.SkippedEntry{}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listHistory(c *gin.Context) {
	items, err := s.deps.Store.SearchHistory(c.Query("q"))
	if err != nil {
		writeError(c, err)
		return
	}
	if items == nil {
		items = []types.HistoryItem{}
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) getHistory(c *gin.Context) {
	item, err := s.deps.Store.HistoryItem(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) deleteHistory(c *gin.Context) {
	if err := s.deps.Store.DeleteHistory(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) clearHistory(c *gin.Context) {
	if err := s.deps.Store.ClearHistory(); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getSettings(c *gin.Context) {
	stored, err := s.deps.Store.Settings()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stored.Redacted())
}

// putSettings replaces the stored settings. An API key equal to the redacted
// form of the stored key keeps the stored key, so a UI can round-trip the
// GET response.
func (s *Server) putSettings(c *gin.Context) {
	var incoming types.Settings
	if err := c.ShouldBindJSON(&incoming); err != nil {
		badRequest(c, "invalid request body: %v", err)
		return
	}
	switch strings.ToLower(strings.TrimSpace(incoming.ActiveProvider)) {
	case "", types.ProviderGoogle, types.ProviderOpenRouter:
	default:
		badRequest(c, "unknown provider %q", incoming.ActiveProvider)
		return
	}

	stored, err := s.deps.Store.Settings()
	if err != nil {
		writeError(c, err)
		return
	}
	masked := stored.Redacted()
	if incoming.Google.APIKey != "" && incoming.Google.APIKey == masked.Google.APIKey {
		incoming.Google.APIKey = stored.Google.APIKey
	}
	if incoming.OpenRouter.APIKey != "" && incoming.OpenRouter.APIKey == masked.OpenRouter.APIKey {
		incoming.OpenRouter.APIKey = stored.OpenRouter.APIKey
	}
	if incoming.ActiveProvider == "" {
		incoming.ActiveProvider = types.ProviderGoogle
	}

	if err := s.deps.Store.SaveSettings(incoming); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, incoming.Redacted())
}

type stacksResponse struct {
	Default string            `json:"default"`
	Stacks  []blueprint.Stack `json:"stacks"`
}

func (s *Server) listStacks(c *gin.Context) {
	catalog := s.deps.Generator.Catalog()
	c.JSON(http.StatusOK, stacksResponse{Default: catalog.Default(), Stacks: catalog.List()})
}
