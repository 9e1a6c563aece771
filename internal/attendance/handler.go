package attendance

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"ROLLCALL-backend/internal/platform/apierr"
	"ROLLCALL-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterFacultyRoutes: RequireRole(RoleFaculty) 配下
func RegisterFacultyRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.POST("/lectures", h.CreateLecture)
	r.GET("/lectures", h.ListLectures)
	r.GET("/lectures/:id/marking", h.MarkingSheet)
	r.POST("/lectures/:id/marks", h.Mark)
	r.GET("/lectures/:id/attendance", h.ListForLecture)
}

// RegisterStudentRoutes: RequireRole(RoleStudent) 配下（/me）
func RegisterStudentRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/subjects/:id/attendance", h.StudentHistory)
}

// RegisterValidators: binding:"attstatus" を gin の validator に登録する
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("attstatus", func(fl validator.FieldLevel) bool {
		_, ok := ParseStatus(fl.Field().String())
		return ok
	})
}

// ---------- handlers ----------

func (h *Handler) CreateLecture(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	var req CreateLectureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.CreateLecture(c.Request.Context(), actor, req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Header("Location", "/lectures/"+strconv.FormatInt(res.LectureID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListLectures(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	res, err := h.svc.ListLectures(c.Request.Context(), actor)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) MarkingSheet(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.svc.MarkingSheet(c.Request.Context(), actor, id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Mark(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req MarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "student_id and status (P, L or A) are required"))
		return
	}
	res, err := h.svc.Mark(c.Request.Context(), actor, id, req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListForLecture(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.svc.ListForLecture(c.Request.Context(), actor, id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) StudentHistory(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.svc.StudentHistory(c.Request.Context(), actor, id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- helpers ----------

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid id"))
		return 0, false
	}
	return id, true
}
