package catalog

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"ROLLCALL-backend/internal/platform/apierr"
)

type Handler struct{ svc *Service }

// RegisterAdminRoutes: RequireRole(RoleAdmin) 配下
func RegisterAdminRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.POST("/subjects", h.CreateSubject)
	r.POST("/enrollments", h.Enroll)
	r.GET("/enrollments", h.ListEnrollments)
}

// RegisterReadRoutes: ログイン済みなら誰でも
func RegisterReadRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/subjects", h.ListSubjects)
}

func (h *Handler) CreateSubject(c *gin.Context) {
	var req CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.CreateSubject(c.Request.Context(), req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Header("Location", "/subjects/"+strconv.FormatInt(res.SubjectID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListSubjects(c *gin.Context) {
	p := pageFrom(c)
	items, total, err := h.svc.ListSubjects(c.Request.Context(), p)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "next_offset": nextOffset(total, p)})
}

func (h *Handler) Enroll(c *gin.Context) {
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "student_id and subject_id are required"))
		return
	}
	res, err := h.svc.Enroll(c.Request.Context(), req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

func (h *Handler) ListEnrollments(c *gin.Context) {
	var subjectID *int64
	if v := c.Query("subject_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid subject_id"))
			return
		}
		subjectID = &id
	}
	p := pageFrom(c)
	items, total, err := h.svc.ListEnrollments(c.Request.Context(), subjectID, p)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "next_offset": nextOffset(total, p)})
}

// ---------- helpers ----------

func pageFrom(c *gin.Context) Page {
	return Page{
		Limit:  atoiDef(c.Query("limit"), 50),
		Offset: atoiDef(c.Query("offset"), 0),
		Order:  strings.ToLower(c.DefaultQuery("order", "asc")),
	}.normalize()
}

func atoiDef(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}

func nextOffset(total int64, p Page) int {
	n := p.Offset + p.Limit
	if n >= int(total) {
		return 0
	}
	return n
}
