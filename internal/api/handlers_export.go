package api

import (
	"fmt"
	"net/http"
	"strconv"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	ctx, cancel := s.actionContext(r)
	defer cancel()
	res, err := sess.Export(ctx)
	if err != nil {
		writeActionError(w, err)
		return
	}
	s.log.Info("exported", "session", sess.ID, "applied", res.Applied, "skipped", res.Skipped, "bytes", len(res.Data))

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.cfg.ExportFilename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("X-Edits-Applied", strconv.Itoa(res.Applied))
	w.Header().Set("X-Edits-Skipped", strconv.Itoa(res.Skipped))
	w.Write(res.Data)
}
