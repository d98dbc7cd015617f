package restserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/chrissnell/snowrecorder/internal/segment"
	"github.com/chrissnell/snowrecorder/internal/session"
	"github.com/chrissnell/snowrecorder/internal/slope"
	"github.com/chrissnell/snowrecorder/internal/storage"
	"github.com/chrissnell/snowrecorder/internal/types"
	"github.com/gorilla/mux"
)

// RunDetail is one run together with its sampled route
type RunDetail struct {
	Run   types.Run          `json:"run"`
	Route []types.RoutePoint `json:"route"`
}

// HealthResponse lists recorder health
type HealthResponse struct {
	Healthy   bool                     `json:"healthy"`
	Recorders []storage.RecorderHealth `json:"recorders"`
}

func (c *Controller) write(w http.ResponseWriter, req *http.Request, data any) {
	if err := c.formatter.WriteResponse(w, req, data); err != nil {
		c.logger.Errorf("error encoding response for %s: %v", req.URL.Path, err)
	}
}

func (c *Controller) writeError(w http.ResponseWriter, req *http.Request, status int, msg string) {
	if err := c.formatter.WriteError(w, req, status, msg); err != nil {
		c.logger.Errorf("error encoding error response for %s: %v", req.URL.Path, err)
	}
}

// live returns the in-memory session named in the route, or nil
func (c *Controller) live(req *http.Request) *session.Session {
	s, err := c.sessions.Get(mux.Vars(req)["id"])
	if err != nil {
		return nil
	}
	return s
}

func (c *Controller) getSessions(w http.ResponseWriter, req *http.Request) {
	c.write(w, req, c.sessions.List())
}

func (c *Controller) getSession(w http.ResponseWriter, req *http.Request) {
	s := c.live(req)
	if s == nil {
		c.writeError(w, req, http.StatusNotFound, "unknown session")
		return
	}
	c.write(w, req, s.Snapshot())
}

func (c *Controller) getSummary(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if s := c.live(req); s != nil {
		sum, err := s.Summary()
		if err != nil {
			c.writeError(w, req, http.StatusConflict, err.Error())
			return
		}
		c.write(w, req, sum)
		return
	}
	if c.history == nil {
		c.writeError(w, req, http.StatusNotFound, "unknown session")
		return
	}
	sum, err := c.history.Summary(req.Context(), id)
	if err != nil {
		c.historyError(w, req, err)
		return
	}
	c.write(w, req, sum)
}

func (c *Controller) getRoute(w http.ResponseWriter, req *http.Request) {
	s := c.live(req)
	if s == nil {
		c.writeError(w, req, http.StatusNotFound, "unknown session")
		return
	}
	route := s.Route()
	if route == nil {
		route = []types.RoutePoint{}
	}
	c.write(w, req, route)
}

func (c *Controller) getRuns(w http.ResponseWriter, req *http.Request) {
	var runs []types.Run
	if s := c.live(req); s != nil {
		runs = s.Runs()
	} else if c.history != nil {
		var err error
		runs, err = c.history.Runs(req.Context(), mux.Vars(req)["id"])
		if err != nil {
			c.historyError(w, req, err)
			return
		}
		if len(runs) == 0 {
			c.writeError(w, req, http.StatusNotFound, "unknown session")
			return
		}
	} else {
		c.writeError(w, req, http.StatusNotFound, "unknown session")
		return
	}
	if runs == nil {
		runs = []types.Run{}
	}
	c.write(w, req, runs)
}

func (c *Controller) getRun(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	n, err := strconv.Atoi(vars["n"])
	if err != nil {
		c.writeError(w, req, http.StatusBadRequest, "invalid run number")
		return
	}

	if s := c.live(req); s != nil {
		run, err := s.Run(n)
		if errors.Is(err, segment.ErrRunNotFound) {
			c.writeError(w, req, http.StatusNotFound, "unknown run")
			return
		}
		if err != nil {
			c.writeError(w, req, http.StatusInternalServerError, err.Error())
			return
		}
		c.write(w, req, RunDetail{Run: run, Route: routeWithin(s.Route(), run)})
		return
	}

	if c.history == nil {
		c.writeError(w, req, http.StatusNotFound, "unknown session")
		return
	}
	runs, err := c.history.Runs(req.Context(), vars["id"])
	if err != nil {
		c.historyError(w, req, err)
		return
	}
	for _, run := range runs {
		if run.Number != n {
			continue
		}
		route, err := c.history.RoutePoints(req.Context(), vars["id"], n)
		if err != nil {
			c.historyError(w, req, err)
			return
		}
		if route == nil {
			route = []types.RoutePoint{}
		}
		c.write(w, req, RunDetail{Run: run, Route: route})
		return
	}
	c.writeError(w, req, http.StatusNotFound, "unknown run")
}

func (c *Controller) historyError(w http.ResponseWriter, req *http.Request, err error) {
	c.logger.Warnf("history lookup failed for %s: %v", req.URL.Path, err)
	c.writeError(w, req, http.StatusNotFound, "unknown session")
}

func (c *Controller) getSlopes(w http.ResponseWriter, req *http.Request) {
	slopes := c.sessions.Slopes().Slopes()
	if slopes == nil {
		slopes = []*slope.Slope{}
	}
	c.write(w, req, slopes)
}

func (c *Controller) getSlopesGeoJSON(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(c.sessions.Slopes().FeatureCollection()); err != nil {
		c.logger.Errorf("error encoding slopes GeoJSON: %v", err)
	}
}

func (c *Controller) getHealth(w http.ResponseWriter, req *http.Request) {
	resp := HealthResponse{Healthy: true, Recorders: []storage.RecorderHealth{}}
	if c.health != nil {
		resp.Recorders = c.health.GetAllHealth()
		for _, r := range resp.Recorders {
			if r.Status != storage.StatusHealthy {
				resp.Healthy = false
			}
		}
	}
	status := http.StatusOK
	if !resp.Healthy {
		status = http.StatusServiceUnavailable
	}
	if err := c.formatter.WriteStatus(w, req, status, resp); err != nil {
		c.logger.Errorf("error encoding health response: %v", err)
	}
}

// routeWithin returns the route points recorded during run
func routeWithin(route []types.RoutePoint, run types.Run) []types.RoutePoint {
	out := []types.RoutePoint{}
	for _, p := range route {
		if p.Timestamp.Before(run.Start) || p.Timestamp.After(run.End) {
			continue
		}
		out = append(out, p)
	}
	return out
}
