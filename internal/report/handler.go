package report

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"ROLLCALL-backend/internal/platform/apierr"
	"ROLLCALL-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterFacultyRoutes: RequireRole(RoleFaculty) 配下
func RegisterFacultyRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/reports/attendance", h.FacultyReport)
	r.GET("/reports/attendance/export", h.Export)
}

// RegisterStudentRoutes: RequireRole(RoleStudent) 配下（/me）
func RegisterStudentRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/dashboard", h.StudentDashboard)
}

func (h *Handler) FacultyReport(c *gin.Context) {
	var q ReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid query: threshold must be 0-100"))
		return
	}
	res, err := h.svc.FacultyReport(c.Request.Context(), q)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Export(c *gin.Context) {
	var q ReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid query: format=csv|xlsx, encoding=utf8|sjis"))
		return
	}
	file, err := h.svc.Export(c.Request.Context(), q)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func (h *Handler) StudentDashboard(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	res, err := h.svc.StudentDashboard(c.Request.Context(), actor)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
