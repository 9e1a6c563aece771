package justification

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ROLLCALL-backend/internal/platform/apierr"
	"ROLLCALL-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterFacultyRoutes: RequireRole(RoleFaculty) 配下
func RegisterFacultyRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/justifications", h.ListForReview)
	r.POST("/justifications/:id/decision", h.Decide)
	r.POST("/justifications/:id/reapply", h.Reapply)
}

// RegisterEvidenceRoutes: RequireAuth 配下。ロールごとの可否は Service で判定する
func RegisterEvidenceRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/evidence/:name", h.Evidence)
}

// RegisterStudentRoutes: RequireRole(RoleStudent) 配下（/me）
func RegisterStudentRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.POST("/attendance/:id/justifications", h.Submit)
	r.GET("/justifications", h.ListMine)
}

func (h *Handler) Submit(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	in := SubmitInput{Message: c.PostForm("message")}
	fh, err := c.FormFile("proof")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		// 証拠は任意。urlencoded のメッセージだけの提出も受け付ける
	case err != nil:
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid multipart body"))
		return
	default:
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "cannot read proof file"))
			return
		}
		defer f.Close()
		in.Filename = fh.Filename
		in.File = f
	}

	res, err := h.svc.Submit(c.Request.Context(), actor, id, in)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListMine(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	res, err := h.svc.ListMine(c.Request.Context(), actor)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListForReview(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	res, err := h.svc.ListForReview(c.Request.Context(), actor, c.Query("status"))
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Decide(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "action must be Approved or Rejected"))
		return
	}
	res, err := h.svc.Decide(c.Request.Context(), actor, id, req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Reapply(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.svc.ReapplyConversion(c.Request.Context(), actor, id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Evidence(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	path, err := h.svc.EvidenceFile(c.Request.Context(), actor, c.Param("name"))
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Header("Cache-Control", "private, no-store")
	c.Header("X-Content-Type-Options", "nosniff")
	c.File(path)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apierr.Body(apierr.CodeInvalidArgument, "invalid id"))
		return 0, false
	}
	return id, true
}
