// Package server is the web viewer for archived briefings and watched
// entities.
package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/civicscope/civicscope/internal/database"
	"github.com/civicscope/civicscope/internal/graph"
	"github.com/civicscope/civicscope/internal/intel"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP server for viewing briefings.
type Server struct {
	db     *database.DB
	owner  string
	graphs *graph.Service
	pages  map[string]*template.Template
	mux    *http.ServeMux
}

// New creates a new Server scoped to one owner's data.
func New(db *database.DB, owner string) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"tierName": func(t intel.Tier) string { return t.Name() },
		"formatDate": func(s string) string {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return s
			}
			return t.Format("Jan 02, 2006")
		},
		"formatTime": func(t time.Time) string { return t.Format("Jan 02, 2006") },
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "briefing.html", "watch.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, owner: owner, graphs: graph.NewService(db), pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Routes
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/briefing/", s.handleBriefing)
	s.mux.HandleFunc("/watch", s.handleWatch)
	s.mux.HandleFunc("/watch/add", s.handleAddWatch)
	s.mux.HandleFunc("/watch/", s.handleWatchAction)
	s.mux.HandleFunc("/api/graph", s.handleGraph)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	briefings, err := s.db.ListBriefings(r.Context(), s.owner)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Briefings": briefings,
	})
}

func (s *Server) handleBriefing(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/briefing/")
	if id == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	briefing, _ := s.db.GetBriefing(r.Context(), id)

	s.render(w, "briefing.html", map[string]any{
		"Briefing":   briefing,
		"BriefingID": id,
	})
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	watched, _ := s.db.ListWatchedEntities(r.Context(), s.owner)
	s.render(w, "watch.html", map[string]any{
		"Watched": watched,
	})
}

func (s *Server) handleAddWatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/watch", http.StatusFound)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	entityType := strings.TrimSpace(r.FormValue("entity_type"))

	if name != "" {
		var typePtr *string
		if entityType != "" {
			typePtr = &entityType
		}
		s.db.AddWatchedEntity(r.Context(), s.owner, name, typePtr, nil)
	}

	http.Redirect(w, r, "/watch", http.StatusFound)
}

func (s *Server) handleWatchAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/watch", http.StatusFound)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/watch/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		http.Redirect(w, r, "/watch", http.StatusFound)
		return
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		http.Redirect(w, r, "/watch", http.StatusFound)
		return
	}

	switch parts[1] {
	case "toggle":
		s.db.ToggleWatchedEntity(r.Context(), id)
	case "delete":
		s.db.RemoveWatchedEntity(r.Context(), id)
	}

	http.Redirect(w, r, "/watch", http.StatusFound)
}

// handleGraph serves the owner's entity graph as JSON for the network view.
// Layout algorithm and minimum cluster size come from query parameters.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	algorithm := r.URL.Query().Get("layout")
	if algorithm == "" {
		algorithm = "grid"
	}
	minSize := 2
	if v := r.URL.Query().Get("min_cluster"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			minSize = n
		}
	}

	g, err := s.graphs.Graph(r.Context(), s.owner)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	positions, err := s.graphs.Layout(r.Context(), s.owner, algorithm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	clusters, err := s.graphs.Clusters(r.Context(), s.owner, minSize)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	type nodeJSON struct {
		Name   string  `json:"name"`
		Degree int     `json:"degree"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
	}
	type edgeJSON struct {
		Source string  `json:"source"`
		Target string  `json:"target"`
		Kind   string  `json:"kind"`
		Weight float64 `json:"weight"`
	}

	nodes := make([]nodeJSON, 0, len(g.Nodes))
	for _, name := range g.NodeNames() {
		n := g.Nodes[name]
		pos := positions[name]
		nodes = append(nodes, nodeJSON{Name: n.Name, Degree: n.Degree, X: pos.X, Y: pos.Y})
	}
	edges := make([]edgeJSON, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, edgeJSON{Source: e.Source, Target: e.Target, Kind: e.Kind, Weight: e.Weight})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"nodes":    nodes,
		"edges":    edges,
		"clusters": clusters,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, owner string, port int) error {
	srv, err := New(db, owner)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
