package web

import (
	"net/http"

	"gradebook/internal/store"
	"gradebook/internal/web/middleware"
)

type profileResponse struct {
	User    userView          `json:"user"`
	Classes []store.Classroom `json:"classes"`
}

// handleStudentProfile returns the calling student's own account together
// with the classrooms they belong to.
func (s *Server) handleStudentProfile(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	user, found, err := s.store.Users.FindByID(r.Context(), s.store.DB(), claims.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "user not found")
		return
	}

	classIDs, err := s.studentClassIDs(r, claims.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	classes, err := s.store.Classrooms.FindAll(r.Context(), s.store.DB(),
		store.Criteria{"id": classIDs}, nil)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{User: viewUser(user), Classes: classes})
}

// handleStudentExams lists the published exams of the student's classrooms,
// newest exam date first. Unpublished exams are invisible to students.
func (s *Server) handleStudentExams(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	classIDs, err := s.studentClassIDs(r, claims.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	exams, err := s.store.Exams.FindAll(r.Context(), s.store.DB(),
		store.Criteria{"classroom_id": classIDs, "published": true},
		[]store.Order{{Column: "exam_date", Dir: "DESC"}})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exams)
}

type examResultsResponse struct {
	Exam       store.Exam         `json:"exam"`
	Results    []store.ResultLine `json:"results"`
	Total      float64            `json:"total"`
	MaxTotal   int                `json:"max_total"`
	Percentage float64            `json:"percentage"`
}

// handleStudentExamResults returns the student's per-subject marks for one
// published exam plus the aggregate line. Exams the student cannot see, from
// other classes or still unpublished, answer 404 rather than 403 so their
// existence is not revealed.
func (s *Server) handleStudentExamResults(w http.ResponseWriter, r *http.Request) {
	examID, err := urlID(r, "examID")
	if err != nil {
		respondBadRequest(w, err)
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())

	exam, found, err := s.store.Exams.FindByID(r.Context(), s.store.DB(), examID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	visible := found && exam.Published
	if visible {
		_, assigned, err := s.store.StudentAssignments.FindOne(r.Context(), s.store.DB(), store.Criteria{
			"student_id": claims.UserID,
			"class_id":   exam.ClassroomID,
		})
		if err != nil {
			respondError(w, r, err)
			return
		}
		visible = assigned
	}
	if !visible {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "exam not found")
		return
	}

	lines, err := s.store.StudentExamResults(r.Context(), s.store.DB(), examID, claims.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := examResultsResponse{Exam: exam, Results: lines}
	for _, line := range lines {
		resp.Total += line.Marks
		resp.MaxTotal += line.MaxMarks
	}
	if resp.MaxTotal > 0 {
		resp.Percentage = resp.Total / float64(resp.MaxTotal) * 100
	}
	writeJSON(w, http.StatusOK, resp)
}

// studentClassIDs returns the ids of every classroom the student belongs to.
func (s *Server) studentClassIDs(r *http.Request, studentID int64) ([]int64, error) {
	links, err := s.store.StudentAssignments.FindAll(r.Context(), s.store.DB(),
		store.Criteria{"student_id": studentID}, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(links))
	for i, l := range links {
		ids[i] = l.ClassID
	}
	return ids, nil
}
