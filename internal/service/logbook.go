package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"onlinemis-backend/internal/scrapers/onlinemis"
)

type logbookEntryRequest struct {
	Year          int    `json:"year" validate:"gte=2000,lte=2100"`
	Semester      int    `json:"semester" validate:"oneof=1 2 3 4"`
	Week          int    `json:"week" validate:"gte=1,lte=24"`
	Date          string `json:"date" validate:"required,datetime=02-01-2006"`
	Start         string `json:"start" validate:"required,datetime=15:04"`
	End           string `json:"end" validate:"required,datetime=15:04"`
	Activity      string `json:"activity" validate:"required,max=4000"`
	MatchesCourse bool   `json:"matchesCourse"`
	CourseId      int    `json:"courseId" validate:"gte=0"`
	PlacementId   string `json:"placementId" validate:"required"`
	StudentId     string `json:"studentId" validate:"required"`
}

func (req logbookEntryRequest) query() onlinemis.LogbookQuery {
	return onlinemis.LogbookQuery{
		ResourceQuery: onlinemis.ResourceQuery{
			Year:     req.Year,
			Semester: onlinemis.Semester(req.Semester),
		},
		Week: req.Week,
	}
}

func (s Service) CreateLogbookEntry(w http.ResponseWriter, r *http.Request, sess session) {
	var req logbookEntryRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		s.fail(w, r, &sess, badRequest("decode body: %w", err))
		return
	}
	err = s.validate.Struct(req)
	if err != nil {
		s.fail(w, r, &sess, err)
		return
	}

	in := onlinemis.LogbookEntryInput{
		LogbookQuery:  req.query(),
		Date:          req.Date,
		Start:         req.Start,
		End:           req.End,
		Activity:      req.Activity,
		MatchesCourse: req.MatchesCourse,
		CourseId:      req.CourseId,
		PlacementId:   req.PlacementId,
		StudentId:     req.StudentId,
	}
	err = in.Validate()
	if err != nil {
		s.fail(w, r, &sess, badRequestError{err: err})
		return
	}

	err = s.client.CreateLogbookEntry(r.Context(), sess.Upstream, in)
	if err != nil {
		s.fail(w, r, &sess, err)
		return
	}
	s.afterLogbookWrite(r.Context(), sess, in.LogbookQuery)
	writeData(w, nil)
}

func (s Service) DeleteLogbookEntry(w http.ResponseWriter, r *http.Request, sess session) {
	q, err := s.weekQuery(sess, r.URL.Query())
	if err != nil {
		s.fail(w, r, &sess, err)
		return
	}
	id := r.PathValue("id")

	err = s.client.DeleteLogbookEntry(r.Context(), sess.Upstream, q, id)
	if err != nil {
		s.fail(w, r, &sess, err)
		return
	}
	s.afterLogbookWrite(r.Context(), sess, q)
	writeData(w, nil)
}

type uploadParams struct {
	Date        string `validate:"required,datetime=02-01-2006"`
	PlacementId string `validate:"required"`
	StudentId   string `validate:"required"`
}

// multipart overhead allowed on top of the largest file
const uploadSlack = 1 << 20

func (s Service) uploadHandler(kind onlinemis.UploadKind) authenticatedHandler {
	limit := int64(onlinemis.MaxScreenshotSize)
	if kind == onlinemis.UploadProgress {
		limit = onlinemis.MaxProgressSize
	}

	return func(w http.ResponseWriter, r *http.Request, sess session) {
		r.Body = http.MaxBytesReader(w, r.Body, limit+uploadSlack)
		err := r.ParseMultipartForm(limit + uploadSlack)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.fail(w, r, &sess, onlinemis.ErrFileTooLarge)
				return
			}
			s.fail(w, r, &sess, badRequest("parse multipart form: %w", err))
			return
		}

		q, err := s.weekQuery(sess, r.MultipartForm.Value)
		if err != nil {
			s.fail(w, r, &sess, err)
			return
		}
		params := uploadParams{
			Date:        r.FormValue("date"),
			PlacementId: r.FormValue("placementId"),
			StudentId:   r.FormValue("studentId"),
		}
		err = s.validate.Struct(params)
		if err != nil {
			s.fail(w, r, &sess, err)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			s.fail(w, r, &sess, badRequest("file: %w", err))
			return
		}
		defer file.Close()

		err = s.client.UploadLogbookFile(r.Context(), sess.Upstream, onlinemis.LogbookUpload{
			LogbookQuery: q,
			Kind:         kind,
			Date:         params.Date,
			PlacementId:  params.PlacementId,
			StudentId:    params.StudentId,
			Filename:     header.Filename,
			File:         file,
		})
		if err != nil {
			s.fail(w, r, &sess, err)
			return
		}
		s.afterLogbookWrite(r.Context(), sess, q)
		writeData(w, nil)
	}
}
