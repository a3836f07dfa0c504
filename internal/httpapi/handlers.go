package httpapi

import (
	"net/http"
	"strconv"

	"familytree/internal/core"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listPeople(c *gin.Context) {
	order, err := core.ParseListOrder(c.Query("sort"))
	if err != nil {
		h.fail(c, err)
		return
	}
	people, err := h.svc.ListPeople(c.Request.Context(), order)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"people": people})
}

func (h *Handler) addPerson(c *gin.Context) {
	var req PersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid person payload: "+err.Error())
		return
	}
	in, err := req.input()
	if err != nil {
		h.fail(c, err)
		return
	}
	person, res, err := h.svc.AddPerson(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, PersonResponse{Person: person, Warnings: violations(res.Warnings())})
}

func (h *Handler) showPerson(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.badRequest(c, "invalid person id")
		return
	}
	details, err := h.svc.PersonDetails(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *Handler) editPerson(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.badRequest(c, "invalid person id")
		return
	}
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid edit payload: "+err.Error())
		return
	}
	update, err := req.update()
	if err != nil {
		h.fail(c, err)
		return
	}
	person, res, err := h.svc.EditPerson(c.Request.Context(), id, update)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PersonResponse{Person: person, Warnings: violations(res.Warnings())})
}

func (h *Handler) removePerson(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.badRequest(c, "invalid person id")
		return
	}
	person, res, err := h.svc.RemovePerson(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PersonResponse{Person: person, Warnings: violations(res.Warnings())})
}

func (h *Handler) linkParent(c *gin.Context) {
	childID, ok := pathID(c, "id")
	if !ok {
		h.badRequest(c, "invalid person id")
		return
	}
	var req ParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid parent payload: "+err.Error())
		return
	}
	res, err := h.svc.AddParentChild(c.Request.Context(), req.ParentID, childID)
	h.writeResult(c, res, err)
}

func (h *Handler) unlinkParent(c *gin.Context) {
	childID, ok1 := pathID(c, "id")
	parentID, ok2 := pathID(c, "other")
	if !ok1 || !ok2 {
		h.badRequest(c, "invalid person id")
		return
	}
	res, err := h.svc.RemoveParentChild(c.Request.Context(), parentID, childID)
	h.writeResult(c, res, err)
}

func (h *Handler) linkSpouse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.badRequest(c, "invalid person id")
		return
	}
	var req SpouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid spouse payload: "+err.Error())
		return
	}
	res, err := h.svc.AddSpouse(c.Request.Context(), id, req.SpouseID)
	h.writeResult(c, res, err)
}

func (h *Handler) unlinkSpouse(c *gin.Context) {
	id, ok1 := pathID(c, "id")
	other, ok2 := pathID(c, "other")
	if !ok1 || !ok2 {
		h.badRequest(c, "invalid person id")
		return
	}
	res, err := h.svc.RemoveSpouse(c.Request.Context(), id, other)
	h.writeResult(c, res, err)
}

func (h *Handler) writeResult(c *gin.Context, res core.Result, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ResultResponse{Violations: violations(res.Violations)})
}

func (h *Handler) search(c *gin.Context) {
	people, err := h.svc.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"people": people})
}

func (h *Handler) tree(c *gin.Context) {
	var (
		text string
		err  error
	)
	if raw := c.Query("root"); raw != "" {
		root, convErr := strconv.Atoi(raw)
		if convErr != nil {
			h.badRequest(c, "invalid root id")
			return
		}
		text, err = h.svc.RenderSubtree(c.Request.Context(), root)
	} else {
		text, err = h.svc.RenderTree(c.Request.Context())
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.String(http.StatusOK, "%s", text)
}

func (h *Handler) check(c *gin.Context) {
	res, err := h.svc.Check(c.Request.Context())
	h.writeResult(c, res, err)
}

func (h *Handler) save(c *gin.Context) {
	if err := h.svc.Save(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": h.svc.SnapshotLocation()})
}

func (h *Handler) listBackups(c *gin.Context) {
	infos, err := h.svc.ListBackups(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backups": infos})
}

func (h *Handler) backup(c *gin.Context) {
	info, err := h.svc.Backup(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"backup": info})
}

func (h *Handler) restore(c *gin.Context) {
	var req RestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid restore payload: "+err.Error())
		return
	}
	if err := h.svc.Restore(c.Request.Context(), req.Key); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restored": req.Key})
}
