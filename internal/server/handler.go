package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/HopIT-Hub/AmpCore/internal/autostart"
	"github.com/HopIT-Hub/AmpCore/internal/store"
)

// statusResponse is the JSON response for GET /status.
type statusResponse struct {
	State         string `json:"state"`
	Version       string `json:"version"`
	AutoStart     bool   `json:"auto_start"`
	ActiveSlot    int    `json:"active_slot"`
	RGBBrightness uint8  `json:"rgb_brightness"`
	Suspended     bool   `json:"suspended"`
}

// handleStatus returns the current link state and core snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := statusResponse{
		State:     s.deviceMgr.State().String(),
		Version:   s.version,
		AutoStart: s.cfg.GetAutoStart(),
	}
	if s.kb != nil {
		resp.ActiveSlot = s.kb.CurrentConfig
		resp.RGBBrightness = s.kb.RGBBrightness
		resp.Suspended = s.kb.Suspend
	}

	writeJSON(w, resp)
}

// slotResponse wraps a store.Slot with its index for GET /slot.
type slotResponse struct {
	Index int         `json:"index"`
	Slot  *store.Slot `json:"slot,omitempty"`
	Error string      `json:"error,omitempty"`
}

// handleSlot reads or writes a calibration slot. GET ?index=N returns
// the slot (defaulting to the active config index); PUT with a JSON
// body and ?index=N persists it.
func (s *Server) handleSlot(w http.ResponseWriter, r *http.Request) {
	index := s.st.ReadConfigIndex()
	if q := r.URL.Query().Get("index"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 || n >= store.NumSlots {
			writeJSON(w, slotResponse{Error: "invalid slot index"})
			return
		}
		index = n
	}

	switch r.Method {
	case http.MethodGet:
		slot, err := s.st.LoadSlot(index)
		if err != nil {
			writeJSON(w, slotResponse{Index: index, Error: err.Error()})
			return
		}
		writeJSON(w, slotResponse{Index: index, Slot: slot})

	case http.MethodPut:
		var slot store.Slot
		if err := json.NewDecoder(r.Body).Decode(&slot); err != nil {
			writeJSON(w, slotResponse{Index: index, Error: "invalid JSON"})
			return
		}
		if err := s.st.SaveSlot(index, &slot); err != nil {
			log.Printf("[server] save slot %d: %v", index, err)
			writeJSON(w, slotResponse{Index: index, Error: err.Error()})
			return
		}
		writeJSON(w, slotResponse{Index: index, Slot: &slot})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSlotExport returns the active (or ?index=N) slot as YAML, for
// a human to edit offline and re-import.
func (s *Server) handleSlotExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	index := s.st.ReadConfigIndex()
	if q := r.URL.Query().Get("index"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n >= 0 && n < store.NumSlots {
			index = n
		}
	}

	slot, err := s.st.LoadSlot(index)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	data, err := store.ExportYAML(slot)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-yaml")
	w.Write(data)
}

// handleSlotImport accepts a YAML body and persists it to ?index=N.
func (s *Server) handleSlotImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	index := s.st.ReadConfigIndex()
	if q := r.URL.Query().Get("index"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 || n >= store.NumSlots {
			writeJSON(w, slotResponse{Error: "invalid slot index"})
			return
		}
		index = n
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, slotResponse{Index: index, Error: "read body: " + err.Error()})
		return
	}
	slot, err := store.ImportYAML(data)
	if err != nil {
		writeJSON(w, slotResponse{Index: index, Error: err.Error()})
		return
	}
	if err := s.st.SaveSlot(index, slot); err != nil {
		writeJSON(w, slotResponse{Index: index, Error: err.Error()})
		return
	}
	writeJSON(w, slotResponse{Index: index, Slot: slot})
}

// autoStartRequest is the JSON body for POST /autostart.
type autoStartRequest struct {
	Enabled bool `json:"enabled"`
}

// autoStartResponse is the JSON response for POST /autostart.
type autoStartResponse struct {
	AutoStart bool   `json:"auto_start"`
	Error     string `json:"error,omitempty"`
}

// handleAutoStart toggles the auto-start on login setting.
func (s *Server) handleAutoStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req autoStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, autoStartResponse{Error: "invalid JSON"})
		return
	}

	if req.Enabled {
		if err := autostart.Enable(); err != nil {
			log.Printf("[server] enable autostart: %v", err)
			writeJSON(w, autoStartResponse{Error: "failed to enable auto-start: " + err.Error()})
			return
		}
	} else {
		if err := autostart.Disable(); err != nil {
			log.Printf("[server] disable autostart: %v", err)
			writeJSON(w, autoStartResponse{Error: "failed to disable auto-start: " + err.Error()})
			return
		}
	}

	if err := s.cfg.SetAutoStart(req.Enabled); err != nil {
		log.Printf("[server] save autostart config: %v", err)
		writeJSON(w, autoStartResponse{Error: "setting changed but failed to persist"})
		return
	}

	log.Printf("[server] auto-start: %v", req.Enabled)
	writeJSON(w, autoStartResponse{AutoStart: req.Enabled})
}

// deviceResponse is the JSON response for GET/POST /device.
type deviceResponse struct {
	VendorID  uint16 `json:"vendor_id"`
	ProductID uint16 `json:"product_id"`
	Serial    string `json:"serial"`
	Error     string `json:"error,omitempty"`
}

// deviceRequest is the JSON body for POST /device.
type deviceRequest struct {
	VendorID  uint16 `json:"vendor_id"`
	ProductID uint16 `json:"product_id"`
	Serial    string `json:"serial"`
}

// handleDevice reads or rebinds which USB accessory identity this
// daemon targets. Rebinding takes effect on the next reconnect attempt,
// not the current link.
func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		vid, pid, serial := s.cfg.GetDevice()
		writeJSON(w, deviceResponse{VendorID: vid, ProductID: pid, Serial: serial})

	case http.MethodPost:
		var req deviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, deviceResponse{Error: "invalid JSON"})
			return
		}
		if err := s.cfg.SetDevice(req.VendorID, req.ProductID, req.Serial); err != nil {
			writeJSON(w, deviceResponse{Error: err.Error()})
			return
		}
		writeJSON(w, deviceResponse{VendorID: req.VendorID, ProductID: req.ProductID, Serial: req.Serial})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
