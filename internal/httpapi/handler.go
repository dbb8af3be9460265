// Package httpapi exposes the attendance and enrollment services over gin.
package httpapi

import (
	"context"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"worksite-attendance/internal/attendance"
	"worksite-attendance/internal/auth"
	"worksite-attendance/internal/employee"
	"worksite-attendance/internal/media"
)

// EmployeeService is the enrollment/profile surface the handlers need.
type EmployeeService interface {
	Register(ctx context.Context, in employee.RegisterInput) (employee.Employee, error)
	QueueEmbedding(e employee.Employee)
	Authenticate(ctx context.Context, email, password string) (employee.Employee, error)
	Update(ctx context.Context, employeeID string, in employee.UpdateInput) error
	ReplaceProfilePhoto(ctx context.Context, employeeID string, file media.Upload) (string, error)
	Get(ctx context.Context, employeeID string) (employee.Employee, error)
}

// AttendanceService is the attendance engine surface the handlers need.
type AttendanceService interface {
	RecordEvent(ctx context.Context, name string, at time.Time, ppe attendance.PPESignals) (attendance.Outcome, error)
	History(ctx context.Context, employeeID string) ([]attendance.Record, error)
	Roster(ctx context.Context, from, to string, f attendance.RosterFilter) ([]attendance.RosterEntry, error)
	GroupedByDay(ctx context.Context) (map[string][]attendance.RosterEntry, error)
}

// Stager copies request blobs into the locker's staging area.
type Stager interface {
	Stage(src io.Reader, originalName string) (media.Upload, error)
}

// Config carries the session-token settings.
type Config struct {
	JWTIssuer     string
	JWTSigningKey string
	SessionTTL    time.Duration
	CookieSecure  bool
}

// Handler holds the dependencies for all routes.
type Handler struct {
	employees  EmployeeService
	attendance AttendanceService
	stager     Stager
	cfg        Config
}

// New builds a handler set.
func New(employees EmployeeService, att AttendanceService, stager Stager, cfg Config) *Handler {
	return &Handler{employees: employees, attendance: att, stager: stager, cfg: cfg}
}

// Mount registers all routes. authMW/adminMW guard the protected and
// admin-only groups.
func (h *Handler) Mount(r gin.IRouter, authMW, adminMW gin.HandlerFunc) {
	r.POST("/register", h.RegisterEmployee)
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)
	r.POST("/mark-attendance", h.MarkAttendance)

	api := r.Group("/api", authMW)
	api.GET("/user", h.CurrentEmployee)
	api.GET("/user/name", h.CurrentEmployeeName)
	api.GET("/user/profilePhoto", h.CurrentProfilePhoto)
	api.GET("/user/history", h.OwnHistory)
	api.PATCH("/users/update", h.UpdateProfile)
	api.POST("/updateProfilePhoto", h.UpdateProfilePhoto)
	api.GET("/attendance", h.Roster)

	admin := api.Group("", adminMW)
	admin.GET("/attendance/all", h.GroupedAttendance)
	admin.GET("/admin/attendance/:employeeId", h.EmployeeAttendance)
}

// fail translates domain errors into HTTP responses. Storage and
// persistence details never reach the client.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, employee.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, employee.ErrDuplicateIdentity):
		c.JSON(http.StatusBadRequest, gin.H{"error": "User already exists"})
	case errors.Is(err, employee.ErrBadCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
	case errors.Is(err, employee.ErrOldPasswordMismatch):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Old password is incorrect"})
	case errors.Is(err, employee.ErrNotFound), errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, attendance.ErrDayComplete):
		c.JSON(http.StatusConflict, gin.H{"error": "Attendance already completed for today"})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
	}
}

func (h *Handler) setSessionCookie(c *gin.Context, e employee.Employee) error {
	token, _, err := auth.Issue(e.EmployeeID, e.Email, e.Designation, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.SessionTTL)
	if err != nil {
		return err
	}
	c.SetCookie(auth.CookieName, token, int(h.cfg.SessionTTL.Seconds()), "/", "", h.cfg.CookieSecure, true)
	return nil
}

type registerForm struct {
	Name        string `form:"name" binding:"required"`
	Email       string `form:"email" binding:"required,email"`
	Phone       string `form:"phone" binding:"required"`
	Department  string `form:"department"`
	Designation string `form:"designation"`
	Password    string `form:"password" binding:"required"`
	EmployeeID  string `form:"employee_id" binding:"required"`
}

// RegisterEmployee handles the multipart registration form. The embedding
// job is queued only after the 201 has been written.
func (h *Handler) RegisterEmployee(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mf, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	files := mf.File["profilePhotos"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one profile photo is required"})
		return
	}

	uploads, err := h.stageAll(files)
	if err != nil {
		fail(c, err)
		return
	}

	e, err := h.employees.Register(c.Request.Context(), employee.RegisterInput{
		EmployeeID:  form.EmployeeID,
		Name:        form.Name,
		Email:       form.Email,
		Phone:       form.Phone,
		Department:  form.Department,
		Designation: form.Designation,
		Password:    form.Password,
		Photos:      uploads,
	})
	if err != nil {
		fail(c, err)
		return
	}

	if err := h.setSessionCookie(c, e); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Registration Successful", "designation": e.Designation})

	// Post-commit, post-response. Outcome never touches this request.
	h.employees.QueueEmbedding(e)
}

func (h *Handler) stageAll(files []*multipart.FileHeader) ([]media.Upload, error) {
	uploads := make([]media.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		up, err := h.stager.Stage(f, fh.Filename)
		f.Close()
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, up)
	}
	return uploads, nil
}

// Login issues the session cookie for a credential pair.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	e, err := h.employees.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.setSessionCookie(c, e); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Login Successful", "designation": e.Designation})
}

// Logout clears the session cookie.
func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie(auth.CookieName, "", -1, "/", "", h.cfg.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *Handler) currentEmployee(c *gin.Context) (employee.Employee, bool) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return employee.Employee{}, false
	}
	e, err := h.employees.Get(c.Request.Context(), claims.Subject)
	if err != nil {
		fail(c, err)
		return employee.Employee{}, false
	}
	return e, true
}

// CurrentEmployee returns the authenticated employee's profile.
func (h *Handler) CurrentEmployee(c *gin.Context) {
	e, ok := h.currentEmployee(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, e)
}

// CurrentEmployeeName returns just the display name.
func (h *Handler) CurrentEmployeeName(c *gin.Context) {
	e, ok := h.currentEmployee(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": e.Name})
}

// CurrentProfilePhoto returns the current flat profile photo filename.
func (h *Handler) CurrentProfilePhoto(c *gin.Context) {
	e, ok := h.currentEmployee(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"profilePhoto": e.ProfilePhoto})
}

// UpdateProfile applies a partial name/phone/password update.
func (h *Handler) UpdateProfile(c *gin.Context) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Phone       *string `json:"phone"`
		OldPassword string  `json:"oldPassword"`
		NewPassword string  `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.employees.Update(c.Request.Context(), claims.Subject, employee.UpdateInput{
		Name:        req.Name,
		Phone:       req.Phone,
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User details updated successfully"})
}

// UpdateProfilePhoto replaces the flat profile photo.
func (h *Handler) UpdateProfilePhoto(c *gin.Context) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	file, header, err := c.Request.FormFile("profilePhoto")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "profilePhoto file is required"})
		return
	}
	defer file.Close()

	up, err := h.stager.Stage(file, header.Filename)
	if err != nil {
		fail(c, err)
		return
	}
	name, err := h.employees.ReplaceProfilePhoto(c.Request.Context(), claims.Subject, up)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile photo updated successfully", "profilePhoto": name})
}

// MarkAttendance applies one check-in/check-out event.
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req struct {
		Name          string          `json:"name" binding:"required"`
		PPECompliant  bool            `json:"ppe_compliant"`
		PPEItems      map[string]bool `json:"ppe_items"`
		PPEConfidence float64         `json:"ppe_confidence"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User name is required"})
		return
	}

	outcome, err := h.attendance.RecordEvent(c.Request.Context(), req.Name, time.Now(), attendance.PPESignals{
		Compliant:  req.PPECompliant,
		Items:      req.PPEItems,
		Confidence: req.PPEConfidence,
	})
	if err != nil {
		fail(c, err)
		return
	}

	msg := "Check-in recorded successfully"
	if outcome == attendance.OutcomeCheckOut {
		msg = "Check-out recorded successfully"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// OwnHistory returns the authenticated employee's attendance records.
func (h *Handler) OwnHistory(c *gin.Context) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	records, err := h.attendance.History(c.Request.Context(), claims.Subject)
	if err != nil {
		fail(c, err)
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, records)
}

// Roster returns records for a date range (today by default) with optional
// filters. A single "date" param queries one day; "from"/"to" bound a range.
func (h *Handler) Roster(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if from == "" && to == "" {
		from = c.Query("date")
	}
	entries, err := h.attendance.Roster(c.Request.Context(), from, to, attendance.RosterFilter{
		EmployeeID:  c.Query("employee_id"),
		Name:        c.Query("name"),
		Department:  c.Query("department"),
		Designation: c.Query("designation"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	if entries == nil {
		entries = []attendance.RosterEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

// GroupedAttendance returns every record grouped by date. Admin only.
func (h *Handler) GroupedAttendance(c *gin.Context) {
	grouped, err := h.attendance.GroupedByDay(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, grouped)
}

// EmployeeAttendance returns one employee's name and records. Admin only.
func (h *Handler) EmployeeAttendance(c *gin.Context) {
	employeeID := c.Param("employeeId")
	e, err := h.employees.Get(c.Request.Context(), employeeID)
	if err != nil {
		fail(c, err)
		return
	}
	records, err := h.attendance.History(c.Request.Context(), employeeID)
	if err != nil {
		fail(c, err)
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"name": e.Name, "attendance": records})
}
