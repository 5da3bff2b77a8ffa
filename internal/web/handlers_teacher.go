package web

import (
	"context"
	"net/http"

	"gradebook/internal/logging"
	"gradebook/internal/store"
	"gradebook/internal/web/middleware"
)

// handleTeacherClasses lists the classrooms assigned to the calling teacher.
func (s *Server) handleTeacherClasses(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	links, err := s.store.TeacherAssignments.FindAll(r.Context(), s.store.DB(),
		store.Criteria{"teacher_id": claims.UserID}, nil)
	if err != nil {
		respondError(w, r, err)
		return
	}

	classIDs := make([]int64, len(links))
	for i, l := range links {
		classIDs[i] = l.ClassID
	}

	classes, err := s.store.Classrooms.FindAll(r.Context(), s.store.DB(),
		store.Criteria{"id": classIDs},
		[]store.Order{{Column: "created_at", Dir: "DESC"}})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, classes)
}

// handleTeacherClassExams lists the exams of one assigned classroom.
func (s *Server) handleTeacherClassExams(w http.ResponseWriter, r *http.Request) {
	classID, err := urlID(r, "classID")
	if err != nil {
		respondBadRequest(w, err)
		return
	}
	if !s.requireTeacherAssignment(w, r, classID) {
		return
	}

	exams, err := s.store.Exams.FindAll(r.Context(), s.store.DB(),
		store.Criteria{"classroom_id": classID},
		[]store.Order{{Column: "created_at", Dir: "DESC"}})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exams)
}

type uploadResponse struct {
	Upserts int `json:"upserts"`
}

// handleUploadMarks accepts a multipart CSV upload and reconciles it into
// the exam's results. The file part must be named "file".
func (s *Server) handleUploadMarks(w http.ResponseWriter, r *http.Request) {
	classID, err := urlID(r, "classID")
	if err != nil {
		respondBadRequest(w, err)
		return
	}
	examID, err := urlID(r, "examID")
	if err != nil {
		respondBadRequest(w, err)
		return
	}
	if !s.requireTeacherAssignment(w, r, classID) {
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "UPLOAD_NO_FILE", "multipart file part \"file\" is required")
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout)
	defer cancel()

	count, err := s.pipeline.Run(ctx, file, classID, examID, claims.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("marks uploaded",
		"class_id", classID,
		"exam_id", examID,
		"filename", header.Filename,
		"upserts", count,
	)
	writeJSON(w, http.StatusOK, uploadResponse{Upserts: count})
}

// handleTeacherPublishExam publishes an exam of an assigned classroom.
func (s *Server) handleTeacherPublishExam(w http.ResponseWriter, r *http.Request) {
	examID, err := urlID(r, "examID")
	if err != nil {
		respondBadRequest(w, err)
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())
	s.publishExam(w, r, examID, claims.UserID)
}

// publishExam flips the exam's published latch. Publishing is one-way and
// idempotent: an already published exam responds 200 without a write.
// A non-zero teacherID gates the operation on a class assignment.
func (s *Server) publishExam(w http.ResponseWriter, r *http.Request, examID, teacherID int64) {
	exam, found, err := s.store.Exams.FindByID(r.Context(), s.store.DB(), examID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "exam not found")
		return
	}
	if teacherID != 0 && !s.requireTeacherAssignment(w, r, exam.ClassroomID) {
		return
	}

	if !exam.Published {
		if _, err := s.store.Exams.Update(r.Context(), s.store.DB(), examID, store.Fields{"published": true}); err != nil {
			respondError(w, r, err)
			return
		}
		exam.Published = true
		logging.FromContext(r.Context()).Info("exam published", "exam_id", examID)
	}
	writeJSON(w, http.StatusOK, exam)
}

// requireTeacherAssignment checks the caller teaches the classroom, writing
// a 403 itself when not.
func (s *Server) requireTeacherAssignment(w http.ResponseWriter, r *http.Request, classID int64) bool {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	_, found, err := s.store.TeacherAssignments.FindOne(r.Context(), s.store.DB(), store.Criteria{
		"teacher_id": claims.UserID,
		"class_id":   classID,
	})
	if err != nil {
		respondError(w, r, err)
		return false
	}
	if !found {
		writeError(w, http.StatusForbidden, "NOT_ASSIGNED", "you are not assigned to this class")
		return false
	}
	return true
}
