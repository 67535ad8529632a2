package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"graphmind/internal/application/services"
	"graphmind/internal/config"
	"graphmind/internal/domain/graph"
	"graphmind/internal/errors"
	"graphmind/internal/interaction"
	"graphmind/internal/layout"
	"graphmind/internal/render"
	"graphmind/internal/render/svg"
)

var validate = validator.New()

// ============================================================================
// REQUEST / RESPONSE TYPES
// ============================================================================

// PointerRequest is one pointer event in layout coordinates.
type PointerRequest struct {
	Type   string  `json:"type" validate:"required,oneof=down move up leave"`
	NodeID string  `json:"nodeId" validate:"required_if=Type down"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// SelectionRequest selects a node. Mode "neighbor" moves an existing
// selection to one of its neighbors.
type SelectionRequest struct {
	NodeID string `json:"nodeId" validate:"required"`
	Mode   string `json:"mode" validate:"omitempty,oneof=click neighbor"`
}

// CreateNodeRequest creates a node and links it to existing nodes.
type CreateNodeRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=2000"`
	LinkTo      []string `json:"linkTo" validate:"dive,required"`
	Type        string   `json:"type" validate:"omitempty,oneof=RELATED_TO REFERENCES SIMILAR_TO"`
	Notes       string   `json:"notes"`
}

// FrameResponse is a frame together with the reconciled scene.
type FrameResponse struct {
	Frame *layout.Frame `json:"frame"`
	Scene render.Scene  `json:"scene"`
}

// ============================================================================
// HANDLERS
// ============================================================================

type handler struct {
	service *services.GraphViewService
	cfg     *config.Config
	logger  *zap.Logger
}

func (h *handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Validation(errors.CodeInvalidInput.String(), "Invalid request body").
			WithDetails(err.Error()).
			WithCause(err).
			Build()
	}
	if err := validate.Struct(dst); err != nil {
		return errors.Validation(errors.CodeInvalidInput.String(), "Request validation failed").
			WithDetails(err.Error()).
			WithCause(err).
			Build()
	}
	return nil
}

func (h *handler) getGraph(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.logger, http.StatusOK, h.service.Model().Snapshot())
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Refresh(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]any{
		"nodes":  result.Nodes,
		"links":  result.Links,
		"issues": len(result.Issues),
	})
}

func (h *handler) getFrame(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.logger, http.StatusOK, FrameResponse{
		Frame: h.service.Frame(),
		Scene: h.service.Scene(),
	})
}

func (h *handler) getFrameSVG(w http.ResponseWriter, r *http.Request) {
	opts := svg.DefaultOptions()
	opts.Width = int(h.cfg.Layout.Width)
	opts.Height = int(h.cfg.Layout.Height)
	opts.Radius = h.cfg.Render.OutlineRadius
	sel := h.service.Controller().Selection()
	opts.Selected = sel.NodeID
	for _, n := range sel.Neighbors {
		opts.Neighbors = append(opts.Neighbors, n.ID)
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	if err := svg.Write(w, h.service.Scene(), h.cfg.Render.Palette, opts); err != nil {
		h.logger.Error("Failed to write SVG", zap.Error(err))
	}
}

func (h *handler) pointer(w http.ResponseWriter, r *http.Request) {
	var req PointerRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	c := h.service.Controller()
	var err error
	switch req.Type {
	case "down":
		err = c.PointerDown(req.NodeID, req.X, req.Y)
	case "move":
		err = c.PointerMove(req.X, req.Y)
	case "up":
		err = c.PointerUp(req.X, req.Y)
	case "leave":
		err = c.PointerLeave()
	}
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, c.Selection())
}

func (h *handler) getSelection(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.logger, http.StatusOK, h.service.Controller().Selection())
}

func (h *handler) putSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	c := h.service.Controller()
	var err error
	if req.Mode == "neighbor" {
		err = c.SelectNeighbor(req.NodeID)
	} else {
		err = c.Click(req.NodeID)
	}
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, c.Selection())
}

func (h *handler) closeSelection(w http.ResponseWriter, r *http.Request) {
	c := h.service.Controller()
	c.Close()
	respondJSON(w, h.logger, http.StatusOK, c.Selection())
}

func (h *handler) neighbors(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.service.NeighborsOf(chi.URLParam(r, "nodeID"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]any{"neighbors": nodes})
}

func (h *handler) addNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	result, err := h.service.AddNode(r.Context(), services.AddNodeRequest{
		Title:       req.Title,
		Description: req.Description,
		LinkTo:      req.LinkTo,
		Type:        graph.LinkType(req.Type),
		Notes:       req.Notes,
	})
	switch {
	case err == nil:
		respondJSON(w, h.logger, http.StatusCreated, result)
	case errors.IsPartialLink(err):
		// The node exists; report which links were rejected.
		respondJSON(w, h.logger, http.StatusMultiStatus, result)
	default:
		respondError(w, r, h.logger, err)
	}
}

// deleteNode requires ?confirm=true when deletes must be confirmed. A
// selected node is deleted through the controller so the selection closes.
func (h *handler) deleteNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "nodeID")
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if h.cfg.Interaction.ConfirmDeletes && !confirmed {
		respondError(w, r, h.logger,
			errors.Validation(errors.CodeDeleteNotConfirm.String(), "Deletion must be confirmed").
				WithOperation("DeleteNode").
				WithDetails("repeat the request with ?confirm=true").
				Build())
		return
	}

	c := h.service.Controller()
	var err error
	if sel := c.Selection(); sel.State == interaction.NodeSelected && sel.NodeID == id {
		_, err = c.DeleteSelected(r.Context(), interaction.Confirmed)
	} else {
		err = h.service.DeleteNode(r.Context(), id)
	}
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) deleteLink(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteLink(r.Context(), chi.URLParam(r, "linkID")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
