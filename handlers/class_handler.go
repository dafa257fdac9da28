package handlers

import (
	"net/http"

	"github.com/nrc-robotics/tournament-system/services"
)

type RobotClassHandler struct {
	classService services.RobotClassService
}

func NewRobotClassHandler(classService services.RobotClassService) *RobotClassHandler {
	return &RobotClassHandler{classService: classService}
}

func (h *RobotClassHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.CreateRobotClassInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	class, err := h.classService.Create(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"robot_class": class}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RobotClassHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	classID, err := getIDFromURL(r, "classID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	class, err := h.classService.GetByID(r.Context(), classID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"robot_class": class}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RobotClassHandler) List(w http.ResponseWriter, r *http.Request) {
	classes, err := h.classService.List(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"robot_classes": classes}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
