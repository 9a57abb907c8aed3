package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clinic-chat-go/internal/service"
)

// PatientHandler 处理患者 CRUD。
type PatientHandler struct {
	patientService service.PatientService
}

// NewPatientHandler 创建一个新的 PatientHandler 实例。
func NewPatientHandler(patientService service.PatientService) *PatientHandler {
	return &PatientHandler{patientService: patientService}
}

func (h *PatientHandler) patientID(c *gin.Context) (uint, bool) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		respond(c, http.StatusBadRequest, "Invalid patient id", nil)
	}
	return id, ok
}

func (h *PatientHandler) Create(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var in service.PatientInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	patient, err := h.patientService.Create(c.Request.Context(), user.ID, in)
	if err != nil {
		respondError(c, err, "Failed to create patient")
		return
	}
	respond(c, http.StatusCreated, "success", patient)
}

func (h *PatientHandler) List(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	list, err := h.patientService.List(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err, "Failed to list patients")
		return
	}
	respond(c, http.StatusOK, "success", list)
}

func (h *PatientHandler) Get(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := h.patientID(c)
	if !ok {
		return
	}
	patient, err := h.patientService.Get(c.Request.Context(), user.ID, id)
	if err != nil {
		respondError(c, err, "Failed to get patient")
		return
	}
	respond(c, http.StatusOK, "success", patient)
}

// Update 同时服务 PUT 与 PATCH，只修改请求中出现的字段。
func (h *PatientHandler) Update(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := h.patientID(c)
	if !ok {
		return
	}
	var in service.PatientInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	patient, err := h.patientService.Update(c.Request.Context(), user.ID, id, in)
	if err != nil {
		respondError(c, err, "Failed to update patient")
		return
	}
	respond(c, http.StatusOK, "success", patient)
}

func (h *PatientHandler) Delete(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := h.patientID(c)
	if !ok {
		return
	}
	if err := h.patientService.Delete(c.Request.Context(), user.ID, id); err != nil {
		respondError(c, err, "Failed to delete patient")
		return
	}
	c.Status(http.StatusNoContent)
}
