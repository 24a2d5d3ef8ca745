package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/wudi/pdfocr/export"
	"github.com/wudi/pdfocr/observability"
	"github.com/wudi/pdfocr/ocr"
	"github.com/wudi/pdfocr/raster"
	"github.com/wudi/pdfocr/report"
	"github.com/wudi/pdfocr/session"
)

var errNoSession = errors.New("no document uploaded")

type indexView struct {
	Session   *session.Session
	Previews  []session.PagePreview
	Included  int
	CanExport bool
	Flash     string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := indexView{Session: s.sess, Flash: r.URL.Query().Get("flash")}
	if s.sess != nil {
		view.Previews = s.svc.Preview(r.Context(), s.sess)
		view.Included = s.sess.Selection.Count()
		view.CanExport = s.sess.Selection.Any()
	}
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, "index.html", view); err != nil {
		s.logger.Error("render index", observability.Error("error", err))
		http.Error(w, "render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.opts.MaxUploadBytes {
		http.Error(w, fmt.Sprintf("upload exceeds %d bytes", s.opts.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read upload", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.svc.Open(r.Context(), header.Filename, data, s.opts.Defaults)
	if err != nil {
		var decodeErr *raster.DecodeError
		if errors.As(err, &decodeErr) {
			s.logger.Warn("upload rejected", observability.String("name", header.Filename), observability.Error("error", err))
			http.Error(w, "could not read PDF: "+decodeErr.Err.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.logger.Error("upload failed", observability.Error("error", err))
		http.Error(w, "process upload", http.StatusInternalServerError)
		return
	}
	if s.sess != nil {
		// Keep the language and cleanup choice across uploads.
		sess.Options = s.sess.Options
	}
	s.sess = sess
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// current returns the session named by the form, writing the error response
// when there is none or it has been replaced. The caller holds mu.
func (s *Server) current(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	if s.sess == nil {
		http.Error(w, errNoSession.Error(), http.StatusConflict)
		return nil, false
	}
	if id := r.FormValue("session"); id != s.sess.ID {
		http.Error(w, "document was replaced, reload the page", http.StatusConflict)
		return nil, false
	}
	return s.sess, true
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.current(w, r)
	if !ok {
		return
	}
	if lang := r.FormValue("language"); lang != "" {
		if err := sess.SetLanguage(lang); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	sess.SetCleanup(r.FormValue("cleanup") != "")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.current(w, r)
	if !ok {
		return
	}
	var err error
	switch {
	case r.FormValue("all") != "":
		sess.Selection.SetAll(r.FormValue("all") == "on")
	case r.FormValue("script") != "":
		err = sess.SelectScript(r.Context(), r.FormValue("script"))
	default:
		err = sess.SelectRanges(r.FormValue("ranges"))
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		http.Error(w, "bad page number", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.current(w, r)
	if !ok {
		return
	}
	if _, err := sess.Toggle(n); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/#page-%d", n), http.StatusSeeOther)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		http.Error(w, "bad page number", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()
	if sess == nil {
		http.Error(w, errNoSession.Error(), http.StatusNotFound)
		return
	}
	page, err := sess.Page(n)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentType(page.Format))
	http.ServeContent(w, r, "", sess.Created, bytes.NewReader(page.Image))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		http.Error(w, errNoSession.Error(), http.StatusNotFound)
		return
	}
	md := report.Markdown(s.sess.Name, s.svc.Preview(r.Context(), s.sess))
	if r.URL.Query().Get("format") == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write(md)
		return
	}
	out, err := report.HTML(md)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(out)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.current(w, r)
	if !ok {
		return
	}
	doc, err := s.svc.Export(r.Context(), sess, func(done, total int) {
		s.hub.broadcast(newProgress(done, total))
	})
	if err != nil {
		if errors.Is(err, export.ErrNoPagesSelected) {
			http.Error(w, "Select at least one page to export.", http.StatusBadRequest)
			return
		}
		s.logger.Error("export failed", observability.Error("error", err))
		http.Error(w, err.Error(), exportStatus(err))
		return
	}
	w.Header().Set("Content-Type", doc.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	http.ServeContent(w, r, doc.Filename, time.Time{}, doc.Open())
}

func exportStatus(err error) int {
	var ocrErr *ocr.OCRError
	if errors.As(err, &ocrErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func contentType(f ocr.ImageFormat) string {
	if f == "" {
		return string(ocr.ImageFormatPNG)
	}
	return string(f)
}
