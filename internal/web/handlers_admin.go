package web

import (
	"net/http"
	"time"

	"gradebook/internal/auth"
	"gradebook/internal/logging"
	"gradebook/internal/store"
	"gradebook/internal/web/middleware"
)

type createUserRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=50"`
	Password string  `json:"password" validate:"required,min=6"`
	Role     string  `json:"role" validate:"required,oneof=admin teacher student"`
	Name     string  `json:"name" validate:"required,max=120"`
	Email    *string `json:"email" validate:"omitempty,email"`
	ClassID  int64   `json:"class_id" validate:"omitempty,gt=0"`
}

// handleCreateUser creates an account and, when class_id is given, assigns
// it to the classroom in the same transaction so a failed assignment never
// leaves an orphaned account.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := s.decodeJSON(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}
	if req.ClassID != 0 && req.Role == store.RoleAdmin {
		writeError(w, http.StatusBadRequest, "VALIDATION", "admins cannot be assigned to a class")
		return
	}

	hash, err := auth.HashPassword(req.Password, s.cfg.Auth.BcryptCost)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if req.ClassID != 0 {
		if _, found, err := s.store.Classrooms.FindByID(r.Context(), s.store.DB(), req.ClassID); err != nil {
			respondError(w, r, err)
			return
		} else if !found {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "class not found")
			return
		}
	}

	var user store.User
	err = s.store.WithTx(r.Context(), func(tx store.DBTX) error {
		fields := store.Fields{
			"username":      req.Username,
			"password_hash": hash,
			"role":          req.Role,
			"name":          req.Name,
		}
		if req.Email != nil {
			fields["email"] = *req.Email
		}

		user, err = s.store.Users.Create(r.Context(), tx, fields)
		if err != nil {
			return err
		}

		switch {
		case req.ClassID != 0 && req.Role == store.RoleTeacher:
			_, err = s.store.TeacherAssignments.Create(r.Context(), tx, store.Fields{
				"teacher_id": user.ID,
				"class_id":   req.ClassID,
			})
		case req.ClassID != 0 && req.Role == store.RoleStudent:
			_, err = s.store.StudentAssignments.Create(r.Context(), tx, store.Fields{
				"student_id": user.ID,
				"class_id":   req.ClassID,
			})
		}
		return err
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("user created", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusCreated, viewUser(user))
}

// handleAdminListClasses lists every classroom, newest first.
func (s *Server) handleAdminListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := s.store.Classrooms.FindAll(r.Context(), s.store.DB(), nil,
		[]store.Order{{Column: "created_at", Dir: "DESC"}})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, classes)
}

type createClassRequest struct {
	Name         string `json:"name" validate:"required,max=120"`
	Code         string `json:"code" validate:"required,max=50"`
	AcademicYear string `json:"academic_year" validate:"required,max=9"`
	Semester     int    `json:"semester" validate:"required,gte=1,lte=12"`
}

func (s *Server) handleCreateClass(w http.ResponseWriter, r *http.Request) {
	var req createClassRequest
	if err := s.decodeJSON(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}

	// Friendly duplicate check; the unique index still backstops races.
	if _, found, err := s.store.Classrooms.FindOne(r.Context(), s.store.DB(), store.Criteria{"code": req.Code}); err != nil {
		respondError(w, r, err)
		return
	} else if found {
		writeError(w, http.StatusConflict, "DUPLICATE", "class code already exists")
		return
	}

	class, err := s.store.Classrooms.Create(r.Context(), s.store.DB(), store.Fields{
		"name":          req.Name,
		"code":          req.Code,
		"academic_year": req.AcademicYear,
		"semester":      req.Semester,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, class)
}

type createSubjectRequest struct {
	ClassroomID int64  `json:"classroom_id" validate:"required,gt=0"`
	Name        string `json:"name" validate:"required,max=120"`
	Code        string `json:"code" validate:"required,max=50"`
	MaxMarks    int    `json:"max_marks" validate:"omitempty,gt=0"`
}

func (s *Server) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	var req createSubjectRequest
	if err := s.decodeJSON(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}

	if _, found, err := s.store.Classrooms.FindByID(r.Context(), s.store.DB(), req.ClassroomID); err != nil {
		respondError(w, r, err)
		return
	} else if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "class not found")
		return
	}

	if _, found, err := s.store.Subjects.FindOne(r.Context(), s.store.DB(), store.Criteria{
		"classroom_id": req.ClassroomID,
		"code":         req.Code,
	}); err != nil {
		respondError(w, r, err)
		return
	} else if found {
		writeError(w, http.StatusConflict, "DUPLICATE", "subject code already exists in this class")
		return
	}

	fields := store.Fields{
		"classroom_id": req.ClassroomID,
		"name":         req.Name,
		"code":         req.Code,
	}
	if req.MaxMarks != 0 {
		fields["max_marks"] = req.MaxMarks
	}

	subject, err := s.store.Subjects.Create(r.Context(), s.store.DB(), fields)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, subject)
}

type createExamRequest struct {
	ClassroomID int64  `json:"classroom_id" validate:"required,gt=0"`
	Name        string `json:"name" validate:"required,max=120"`
	ExamDate    string `json:"exam_date" validate:"required,datetime=2006-01-02"`
}

func (s *Server) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var req createExamRequest
	if err := s.decodeJSON(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}
	examDate, err := time.Parse("2006-01-02", req.ExamDate)
	if err != nil {
		respondBadRequest(w, err)
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())

	if _, found, err := s.store.Classrooms.FindByID(r.Context(), s.store.DB(), req.ClassroomID); err != nil {
		respondError(w, r, err)
		return
	} else if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "class not found")
		return
	}

	if _, found, err := s.store.Exams.FindOne(r.Context(), s.store.DB(), store.Criteria{
		"classroom_id": req.ClassroomID,
		"name":         req.Name,
	}); err != nil {
		respondError(w, r, err)
		return
	} else if found {
		writeError(w, http.StatusConflict, "DUPLICATE", "exam name already exists in this class")
		return
	}

	exam, err := s.store.Exams.Create(r.Context(), s.store.DB(), store.Fields{
		"classroom_id": req.ClassroomID,
		"name":         req.Name,
		"exam_date":    examDate,
		"created_by":   claims.UserID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, exam)
}

// handleAdminPublishExam publishes an exam regardless of class assignment.
func (s *Server) handleAdminPublishExam(w http.ResponseWriter, r *http.Request) {
	examID, err := urlID(r, "examID")
	if err != nil {
		respondBadRequest(w, err)
		return
	}
	s.publishExam(w, r, examID, 0)
}

type assignTeacherRequest struct {
	TeacherID int64 `json:"teacher_id" validate:"required,gt=0"`
	ClassID   int64 `json:"class_id" validate:"required,gt=0"`
}

func (s *Server) handleAssignTeacher(w http.ResponseWriter, r *http.Request) {
	var req assignTeacherRequest
	if err := s.decodeJSON(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}
	if !s.verifyAssignment(w, r, req.TeacherID, store.RoleTeacher, req.ClassID) {
		return
	}

	link, err := s.store.TeacherAssignments.Create(r.Context(), s.store.DB(), store.Fields{
		"teacher_id": req.TeacherID,
		"class_id":   req.ClassID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

type assignStudentRequest struct {
	StudentID int64 `json:"student_id" validate:"required,gt=0"`
	ClassID   int64 `json:"class_id" validate:"required,gt=0"`
}

func (s *Server) handleAssignStudent(w http.ResponseWriter, r *http.Request) {
	var req assignStudentRequest
	if err := s.decodeJSON(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}
	if !s.verifyAssignment(w, r, req.StudentID, store.RoleStudent, req.ClassID) {
		return
	}

	link, err := s.store.StudentAssignments.Create(r.Context(), s.store.DB(), store.Fields{
		"student_id": req.StudentID,
		"class_id":   req.ClassID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

// verifyAssignment checks that the user exists with the expected role and
// that the classroom exists, writing the error response itself on failure.
func (s *Server) verifyAssignment(w http.ResponseWriter, r *http.Request, userID int64, role string, classID int64) bool {
	user, found, err := s.store.Users.FindByID(r.Context(), s.store.DB(), userID)
	if err != nil {
		respondError(w, r, err)
		return false
	}
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "user not found")
		return false
	}
	if user.Role != role {
		writeError(w, http.StatusBadRequest, "ROLE_MISMATCH", "user does not have role "+role)
		return false
	}

	if _, found, err := s.store.Classrooms.FindByID(r.Context(), s.store.DB(), classID); err != nil {
		respondError(w, r, err)
		return false
	} else if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "class not found")
		return false
	}
	return true
}
