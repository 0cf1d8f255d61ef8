package api

import (
	"log"
	"net/http"

	"github.com/craneiq/cranesight/internal/models"
)

type pageData struct {
	ChannelID   string
	Field       string
	FieldNumber int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.render(w, "index.html", pageData{ChannelID: s.ts.ChannelID()})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.render(w, "dashboard.html", pageData{ChannelID: s.ts.ChannelID()})
}

func (s *Server) handleFieldDashboard(w http.ResponseWriter, r *http.Request) {
	field := r.PathValue("field")
	fieldNumber, ok := models.FieldNumbers[field]
	if !ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	s.render(w, "field_dashboard.html", pageData{
		ChannelID:   s.ts.ChannelID(),
		Field:       field,
		FieldNumber: fieldNumber,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("template %s: %v", name, err)
	}
}
