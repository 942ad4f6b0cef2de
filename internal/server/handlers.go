package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidyalaya/prayerbell/internal/blobstore"
	"github.com/vidyalaya/prayerbell/internal/scheduler"
	"github.com/vidyalaya/prayerbell/internal/upload"
	"github.com/vidyalaya/prayerbell/playback"
	"github.com/vidyalaya/prayerbell/prayer"
)

type prayerView struct {
	prayer.Prayer
	HasRecording bool `json:"has_recording"`
}

type playbackView struct {
	State        string                `json:"state"`
	Selected     *prayer.Prayer        `json:"selected,omitempty"`
	Source       string                `json:"source"`
	Volume       int                   `json:"volume"`
	Muted        bool                  `json:"muted"`
	Level        float64               `json:"level"`
	Capabilities playback.Capabilities `json:"capabilities"`
}

type volumeRequest struct {
	Volume *int `json:"volume"`
}

type muteRequest struct {
	Muted *bool `json:"muted"`
}

func (s *Server) view(sess playback.Session) playbackView {
	return playbackView{
		State:        sess.State.String(),
		Selected:     sess.Selected,
		Source:       sess.Source.String(),
		Volume:       sess.Volume,
		Muted:        sess.Muted,
		Level:        sess.EffectiveLevel(),
		Capabilities: s.deps.Controller.Capabilities(),
	}
}

func (s *Server) listPrayers(*gin.Context) (any, *apiError) {
	list := s.deps.Catalog.List()
	out := make([]prayerView, 0, len(list))
	for _, p := range list {
		out = append(out, prayerView{Prayer: p, HasRecording: p.HasRecording()})
	}
	return out, nil
}

func (s *Server) getPrayer(c *gin.Context) (any, *apiError) {
	p, err := s.deps.Catalog.Get(c.Param("id"))
	if err != nil {
		return nil, toAPIError(err)
	}
	return prayerView{Prayer: p, HasRecording: p.HasRecording()}, nil
}

func (s *Server) playPrayer(c *gin.Context) (any, *apiError) {
	if err := s.deps.Controller.PlayID(c.Request.Context(), c.Param("id")); err != nil {
		return nil, toAPIError(err)
	}
	return s.view(s.deps.Controller.Session()), nil
}

func (s *Server) stopPlayback(*gin.Context) (any, *apiError) {
	s.deps.Controller.Stop()
	return s.view(s.deps.Controller.Session()), nil
}

func (s *Server) playbackState(*gin.Context) (any, *apiError) {
	return s.view(s.deps.Controller.Session()), nil
}

func (s *Server) setVolume(c *gin.Context) (any, *apiError) {
	var req volumeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Volume == nil {
		return nil, badRequest(`body must be {"volume": 0..100}`)
	}
	if *req.Volume < 0 || *req.Volume > 100 {
		return nil, badRequest(fmt.Sprintf("volume %d out of range 0..100", *req.Volume))
	}
	s.deps.Controller.SetVolume(*req.Volume)
	return s.view(s.deps.Controller.Session()), nil
}

func (s *Server) setMuted(c *gin.Context) (any, *apiError) {
	var req muteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Muted == nil {
		return nil, badRequest(`body must be {"muted": true|false}`)
	}
	s.deps.Controller.SetMuted(*req.Muted)
	return s.view(s.deps.Controller.Session()), nil
}

func (s *Server) uploadAudio(c *gin.Context) (any, *apiError) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	fh, err := c.FormFile("audio")
	if err != nil {
		return nil, badRequest("multipart field \"audio\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, badRequest(err.Error())
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, badRequest(err.Error())
	}

	file := upload.File{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data}
	st, err := s.deps.Uploader.Upload(c.Request.Context(), s.deps.SchoolID, c.Param("id"), file)
	if err != nil {
		var verr *playback.ValidationError
		if errors.As(err, &verr) {
			s.metrics.uploadsTotal.WithLabelValues("rejected").Inc()
		}
		return nil, toAPIError(err)
	}
	c.Status(http.StatusAccepted)
	return st, nil
}

func (s *Server) uploadStatus(c *gin.Context) (any, *apiError) {
	st, ok := s.deps.Uploader.Status(c.Param("id"))
	if !ok {
		return nil, &apiError{Code: http.StatusNotFound, Message: "no upload for " + c.Param("id"), Kind: "not_found"}
	}
	return st, nil
}

func (s *Server) serveBlob(c *gin.Context) {
	b, err := s.deps.Blobs.Get(blobstore.URL(c.Param("id")))
	if err != nil {
		apiErr := toAPIError(err)
		c.JSON(apiErr.Code, gin.H{"error": apiErr.Message})
		return
	}
	contentType := b.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, b.Data)
}

func (s *Server) getSchedule(c *gin.Context) (any, *apiError) {
	return s.deps.Settings.Get(c.Request.Context(), s.deps.SchoolID), nil
}

func (s *Server) putSchedule(c *gin.Context) (any, *apiError) {
	sched := prayer.DefaultSchedule()
	if err := c.ShouldBindJSON(&sched); err != nil {
		return nil, badRequest("invalid schedule: " + err.Error())
	}
	if _, err := scheduler.Spec(sched.Time); err != nil {
		return nil, badRequest(err.Error())
	}
	if sched.PrayersSequence == nil {
		sched.PrayersSequence = []string{}
	}

	snap := s.deps.Settings.Save(c.Request.Context(), s.deps.SchoolID, sched)
	if s.deps.Scheduler != nil {
		if err := s.deps.Scheduler.Apply(snap.Schedule); err != nil {
			s.logger.Error("Unable to apply schedule", "err", err)
		}
	}
	return snap, nil
}

func (s *Server) startSession(c *gin.Context) (any, *apiError) {
	snap := s.deps.Settings.Get(c.Request.Context(), s.deps.SchoolID)
	if err := s.deps.Controller.StartSession(c.Request.Context(), snap.Schedule); err != nil {
		return nil, toAPIError(err)
	}
	return s.view(s.deps.Controller.Session()), nil
}
