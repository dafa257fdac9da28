package handlers

import (
	"errors"
	"net/http"

	"github.com/nrc-robotics/tournament-system/services"
)

const maxImportSize = 10 << 20 // 10MB

type ImportHandler struct {
	importService services.CSVImportService
}

func NewImportHandler(importService services.CSVImportService) *ImportHandler {
	return &ImportHandler{importService: importService}
}

// ImportRoster принимает multipart-форму с полем file: CSV-реестр
// регистраций (команда + робот + пилот на строку).
func (h *ImportHandler) ImportRoster(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		badRequestResponse(w, r, errors.New("failed to parse multipart form"))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		badRequestResponse(w, r, errors.New("csv file is required"))
		return
	}
	defer file.Close()

	report, err := h.importService.ImportRoster(r.Context(), tournamentID, file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"report": report}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
