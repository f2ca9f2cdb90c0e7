package web

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/planos/internal/config"
	"github.com/JonMunkholm/planos/internal/core"
	"github.com/JonMunkholm/planos/internal/flatfile"
	"github.com/JonMunkholm/planos/internal/logging"
	"github.com/JonMunkholm/planos/internal/web/templates"
)

// Multipart field names of the two input files.
const (
	fieldCash     = "cash"
	fieldBenefits = "benefits"
)

// formOverhead is the multipart framing allowed on top of the two files.
const formOverhead = 1 << 20

// extractOptions are the optional parameters of POST /api/extract and
// POST /api/preview.
// They may come from the query string or the multipart form.
type extractOptions struct {
	Format     string `json:"format" validate:"required,oneof=xlsx csv excel"`
	Timestamp  bool   `json:"timestamp"`
	Summary    bool   `json:"summary"`
	DateLayout string `json:"date_layout" validate:"omitempty,max=32,datelayout"`
}

// ExtractSummary is the JSON body returned when summary=true.
type ExtractSummary struct {
	RunID    string           `json:"run_id"`
	Outcome  core.Outcome     `json:"outcome"`
	FileName string           `json:"file_name"`
	Records  int              `json:"records"`
	Stats    *core.Statistics `json:"stats"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("datelayout", func(fl validator.FieldLevel) bool {
		return config.ValidDateLayout(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := templates.Index(core.DefaultRules(), s.cfg.Output.Format, s.cfg.Output.Timestamp)
	if err := page.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render index", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// handleListRules returns the rule table in evaluation order.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, core.DefaultRules())
}

// handleExtract runs one extraction over the uploaded files and returns the
// flat file, or a JSON summary when summary=true.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	up, status, err := s.parseUpload(w, r)
	if err != nil {
		respondError(w, r, err, status)
		return
	}
	defer up.Close()

	res, err := s.service.RunWith(r.Context(), up.request(), up.opts.DateLayout)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if res.Empty() {
		respondError(w, r, fmt.Errorf("run %s: %w", res.RunID, core.ErrEmptyResult), http.StatusUnprocessableEntity)
		return
	}

	ff := flatfile.FromResult(res)
	name := flatfile.FileName(up.format, time.Now(), up.opts.Timestamp)
	w.Header().Set("X-Run-ID", res.RunID)

	if up.opts.Summary {
		render.JSON(w, r, ExtractSummary{
			RunID:    res.RunID,
			Outcome:  res.Outcome,
			FileName: name,
			Records:  ff.Len(),
			Stats:    ff.Stats,
		})
		return
	}

	// Buffer the file so a write failure can still produce an error response.
	var buf bytes.Buffer
	if err := ff.Write(&buf, up.format); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", up.format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("write flat file", "run_id", res.RunID, "error", err)
	}
}

// handlePreview reports what an extraction over the uploaded files would
// produce. An empty outcome is a normal report, not an error.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	up, status, err := s.parseUpload(w, r)
	if err != nil {
		respondError(w, r, err, status)
		return
	}
	defer up.Close()

	p, err := s.service.Preview(r.Context(), up.request(), up.opts.DateLayout)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	w.Header().Set("X-Run-ID", p.RunID)
	render.JSON(w, r, p)
}

// upload is a parsed multipart request carrying both input files.
type upload struct {
	form     *multipart.Form
	opts     extractOptions
	format   flatfile.Format
	cash     *uploadedFile
	benefits *uploadedFile
}

func (u *upload) request() core.RunRequest {
	return core.RunRequest{Cash: u.cash.input(), Benefits: u.benefits.input()}
}

// Close releases the open files and any multipart temp files.
func (u *upload) Close() {
	if u.cash != nil {
		u.cash.Close()
	}
	if u.benefits != nil {
		u.benefits.Close()
	}
	if u.form != nil {
		_ = u.form.RemoveAll()
	}
}

// parseUpload reads the multipart form, its options and both files. On
// error it returns the HTTP status to respond with and has already
// released everything it opened.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (_ *upload, status int, err error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, 2*maxSize+formOverhead)

	if err := r.ParseMultipartForm(s.cfg.Upload.MaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("file too large: request exceeds %d bytes", 2*maxSize+formOverhead)
		}
		return nil, http.StatusBadRequest, fmt.Errorf("%w: %v", core.ErrNoFile, err)
	}

	up := &upload{form: r.MultipartForm}
	defer func() {
		if err != nil {
			up.Close()
		}
	}()

	if up.opts, err = s.parseExtractOptions(r); err != nil {
		return nil, http.StatusBadRequest, err
	}
	if up.format, err = flatfile.ParseFormat(up.opts.Format); err != nil {
		return nil, http.StatusBadRequest, err
	}
	if up.cash, err = formInput(r, fieldCash); err != nil {
		return nil, http.StatusBadRequest, err
	}
	if up.benefits, err = formInput(r, fieldBenefits); err != nil {
		return nil, http.StatusBadRequest, err
	}
	return up, http.StatusOK, nil
}

// parseExtractOptions reads and validates the optional extract parameters.
func (s *Server) parseExtractOptions(r *http.Request) (extractOptions, error) {
	opts := extractOptions{
		Format:     strings.ToLower(strings.TrimSpace(r.FormValue("format"))),
		Timestamp:  s.cfg.Output.Timestamp,
		DateLayout: r.FormValue("date_layout"),
	}
	if opts.Format == "" {
		opts.Format = strings.ToLower(s.cfg.Output.Format)
	}

	var err error
	if opts.Timestamp, err = formBool(r, "timestamp", opts.Timestamp); err != nil {
		return opts, err
	}
	if opts.Summary, err = formBool(r, "summary", false); err != nil {
		return opts, err
	}

	if err := s.validate.Struct(opts); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return opts, fmt.Errorf("invalid option: %s=%q fails %s", fe.Field(), fmt.Sprint(fe.Value()), fe.Tag())
		}
		return opts, fmt.Errorf("invalid option: %w", err)
	}
	return opts, nil
}

// formBool parses a boolean form value, returning def when it is absent.
func formBool(r *http.Request, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("invalid option: %s=%q is not a boolean", name, raw)
	}
	return v, nil
}

// uploadedFile is one opened multipart file.
type uploadedFile struct {
	multipart.File
	name string
}

func (f *uploadedFile) input() core.Input {
	return core.Input{Name: f.name, Reader: f.File}
}

// formInput opens the multipart file stored under field.
func formInput(r *http.Request, field string) (*uploadedFile, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, fmt.Errorf("%s: %w", field, core.ErrNoFile)
		}
		return nil, fmt.Errorf("%s: %w: %v", field, core.ErrNoFile, err)
	}
	return &uploadedFile{File: file, name: header.Filename}, nil
}
